package model

import "time"

const (
	AuthProviderLocal = "local"
	AuthProviderAD    = "ad"
)

type User struct {
	ID           int        `db:"id"            json:"id"`
	Username     string     `db:"username"      json:"username"`
	Email        *string    `db:"email"         json:"email,omitempty"`
	PasswordHash *string    `db:"password_hash" json:"-"`
	FullName     *string    `db:"fullname"      json:"fullname,omitempty"`
	Department   *string    `db:"department"    json:"department,omitempty"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	IsAdmin      bool       `db:"is_admin"      json:"is_admin"`
	AuthProvider string     `db:"auth_provider" json:"auth_provider"`
	ADDN         *string    `db:"ad_dn"         json:"ad_dn,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
	LastLogin    *time.Time `db:"last_login"    json:"last_login,omitempty"`
}

// HasLocalPassword reports whether a bcrypt hash is stored for the user.
func (u *User) HasLocalPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
