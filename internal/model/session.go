package model

import "time"

type Session struct {
	ID           int       `db:"id"            json:"id"`
	Token        string    `db:"session_token" json:"-"`
	UserID       int       `db:"user_id"       json:"user_id"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	ExpiresAt    time.Time `db:"expires_at"    json:"expires_at"`
	IsActive     bool      `db:"is_active"     json:"is_active"`
	IPAddress    *string   `db:"ip_address"    json:"ip_address,omitempty"`
	UserAgent    *string   `db:"user_agent"    json:"user_agent,omitempty"`
}

// Valid reports whether the session can still authenticate requests at now.
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
