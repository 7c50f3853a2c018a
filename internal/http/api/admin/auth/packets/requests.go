package packets

// body for logging in; username may also be the email
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password"     binding:"required,min=8,max=72"`
}

// CreateUserRequest: local accounts need a password, directory accounts must not carry one.
type CreateUserRequest struct {
	Username     string  `json:"username"      binding:"required,min=2,max=100"`
	Email        *string `json:"email"         binding:"omitempty,email"`
	Password     string  `json:"password"      binding:"omitempty,min=8,max=72"`
	FullName     *string `json:"fullname"`
	Department   *string `json:"department"`
	IsAdmin      bool    `json:"is_admin"`
	AuthProvider string  `json:"auth_provider" binding:"omitempty,oneof=local ad"`
	ADDN         *string `json:"ad_dn"`
}

type UpdateUserRequest struct {
	Email      *string `json:"email"      binding:"omitempty,email"`
	FullName   *string `json:"fullname"`
	Department *string `json:"department"`
	IsAdmin    *bool   `json:"is_admin"`
	IsActive   *bool   `json:"is_active"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}
