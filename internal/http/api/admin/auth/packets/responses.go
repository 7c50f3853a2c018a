package packets

import "time"

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      ProfileResponse `json:"user"`
}

type ProfileResponse struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	Email        *string    `json:"email,omitempty"`
	FullName     *string    `json:"fullname,omitempty"`
	Department   *string    `json:"department,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	IsActive     bool       `json:"is_active"`
	AuthProvider string     `json:"auth_provider"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type SessionResponse struct {
	ID           int       `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	Current      bool      `json:"current"`
}
