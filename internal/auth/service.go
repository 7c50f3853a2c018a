// Package auth authenticates users and manages their database-backed sessions.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/db"
	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
	"github.com/Nixie-Tech-LLC/vidcast/internal/metrics"
	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 5
)

type UserStore interface {
	GetUserByID(ctx context.Context, id int) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
	UpdateUser(ctx context.Context, id int, upd db.UserUpdate) error
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
}

type SessionStore interface {
	InsertSession(ctx context.Context, s *model.Session) error
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	TouchSession(ctx context.Context, id int, at time.Time) error
	RevokeSessionByToken(ctx context.Context, token string) (bool, error)
	RevokeSessionsByID(ctx context.Context, ids []int) (int, error)
	RevokeUserSessions(ctx context.Context, userID int) (int, error)
	ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error)
	DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error)
	WithUserLock(ctx context.Context, userID int, fn func(tx db.SessionTx) error) error
}

// Principal is the authenticated user behind a session.
type Principal struct {
	UserID    int
	Username  string
	IsAdmin   bool
	SessionID int
	ExpiresAt time.Time
}

type Config struct {
	SessionTTL  time.Duration
	MaxSessions int
}

type Service struct {
	users     UserStore
	sessions  SessionStore
	directory Directory
	cfg       Config
	now       func() time.Time
}

func NewService(users UserStore, sessions SessionStore, directory Directory, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if directory == nil {
		directory = NoDirectory{}
	}
	return &Service{users: users, sessions: sessions, directory: directory, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) SessionTTL() time.Duration { return s.cfg.SessionTTL }

// usesDirectory: AD accounts, and any account without a local hash whatever its provider flag.
func usesDirectory(u *model.User) bool {
	return u.AuthProvider == model.AuthProviderAD || !u.HasLocalPassword()
}

// Authenticate checks login (username or email, exact match) and password.
// Failures are typed: NotFound, AccountDisabled or InvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	if login == "" || password == "" {
		metrics.LoginAttempts.WithLabelValues("none", "invalid").Inc()
		return nil, errs.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			metrics.LoginAttempts.WithLabelValues("none", "unknown_user").Inc()
			return nil, errs.NotFound("user %q not found", login)
		}
		return nil, err
	}
	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues(user.AuthProvider, "disabled").Inc()
		return nil, errs.ErrAccountDisabled
	}

	provider := model.AuthProviderLocal
	if usesDirectory(user) {
		provider = model.AuthProviderAD
		if err := s.directory.Bind(ctx, user, password); err != nil {
			if !errors.Is(err, ErrDirectoryRejected) {
				log.Error().Err(err).Int("user_id", user.ID).Str("provider", user.AuthProvider).
					Msg("[auth] directory authentication failed")
			}
			metrics.LoginAttempts.WithLabelValues(provider, "invalid").Inc()
			return nil, errs.ErrInvalidCredentials
		}
	} else if !CheckPassword(*user.PasswordHash, password) {
		metrics.LoginAttempts.WithLabelValues(provider, "invalid").Inc()
		return nil, errs.ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		log.Warn().Err(err).Int("user_id", user.ID).Msg("[auth] could not record last login")
	}
	metrics.LoginAttempts.WithLabelValues(provider, "success").Inc()
	return user, nil
}

// CreateSession issues a fresh token for userID. When the user already holds the
// maximum number of sessions, the least recently active ones are revoked first.
func (s *Service) CreateSession(ctx context.Context, userID int, clientIP, userAgent string, ttl time.Duration) (*model.Session, error) {
	if ttl <= 0 {
		ttl = s.cfg.SessionTTL
	}
	now := s.now()

	token, err := NewSessionToken()
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, err, "could not create session")
	}
	sess := &model.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if clientIP != "" {
		sess.IPAddress = &clientIP
	}
	if userAgent != "" {
		sess.UserAgent = &userAgent
	}

	err = s.sessions.WithUserLock(ctx, userID, func(tx db.SessionTx) error {
		active, err := tx.ListActiveSessions(ctx, userID, now)
		if err != nil {
			return err
		}
		if len(active) >= s.cfg.MaxSessions {
			// active is most-recent first; keep MaxSessions-1 to make room
			stale := active[s.cfg.MaxSessions-1:]
			ids := make([]int, len(stale))
			for i, old := range stale {
				ids[i] = old.ID
			}
			n, err := tx.RevokeSessionsByID(ctx, ids)
			if err != nil {
				return err
			}
			metrics.SessionsRevoked.WithLabelValues("cap").Add(float64(n))
			log.Info().Int("user_id", userID).Int("revoked", n).Msg("[auth] session cap reached, revoked oldest sessions")
		}
		return tx.InsertSession(ctx, sess)
	})
	if err != nil {
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	log.Info().Int("user_id", userID).Int("session_id", sess.ID).Time("expires_at", sess.ExpiresAt).
		Msg("[auth] session created")
	return sess, nil
}

// VerifySession resolves token to its principal. A nil principal with a nil error
// means the token is unknown, revoked or expired; an error means the check itself failed.
func (s *Service) VerifySession(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.sessions.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !sess.IsActive {
		return nil, nil
	}

	now := s.now()
	if !sess.ExpiresAt.After(now) {
		if _, err := s.sessions.RevokeSessionByToken(ctx, token); err != nil {
			log.Warn().Err(err).Int("session_id", sess.ID).Msg("[auth] could not revoke expired session")
		} else {
			metrics.SessionsRevoked.WithLabelValues("expired").Inc()
		}
		return nil, nil
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}

	if err := s.sessions.TouchSession(ctx, sess.ID, now); err != nil {
		return nil, err
	}

	return &Principal{
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// RevokeSession switches off one session; false if it was unknown or already off.
func (s *Service) RevokeSession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	ok, err := s.sessions.RevokeSessionByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if ok {
		metrics.SessionsRevoked.WithLabelValues("logout").Inc()
	}
	return ok, nil
}

// RevokeUserSession ends one of userID's own active sessions by id.
func (s *Service) RevokeUserSession(ctx context.Context, userID, sessionID int) (bool, error) {
	active, err := s.sessions.ListActiveSessions(ctx, userID, s.now())
	if err != nil {
		return false, err
	}
	for _, sess := range active {
		if sess.ID != sessionID {
			continue
		}
		n, err := s.sessions.RevokeSessionsByID(ctx, []int{sessionID})
		if err != nil {
			return false, err
		}
		metrics.SessionsRevoked.WithLabelValues("logout").Add(float64(n))
		return n > 0, nil
	}
	return false, nil
}

func (s *Service) RevokeAllSessions(ctx context.Context, userID int) (int, error) {
	n, err := s.sessions.RevokeUserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevoked.WithLabelValues("all").Add(float64(n))
	log.Info().Int("user_id", userID).Int("revoked", n).Msg("[auth] revoked all sessions")
	return n, nil
}

// SweepExpired deactivates every session past its expiry that is still marked active.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeactivateExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.SessionsRevoked.WithLabelValues("sweep").Add(float64(n))
	return n, nil
}

func (s *Service) ListSessions(ctx context.Context, userID int) ([]model.Session, error) {
	return s.sessions.ListActiveSessions(ctx, userID, s.now())
}

// ChangePassword replaces a local password and signs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID int, current, next string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if usesDirectory(user) {
		return errs.Validation("password for directory accounts is managed by the directory")
	}
	if !CheckPassword(*user.PasswordHash, current) {
		return errs.ErrInvalidCredentials
	}
	return s.SetPassword(ctx, userID, next)
}

// SetPassword stores a new bcrypt hash without checking the old one (admin reset).
func (s *Service) SetPassword(ctx context.Context, userID int, next string) error {
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return errs.Wrap(errs.KindStorage, err, "could not hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	_, err = s.RevokeAllSessions(ctx, userID)
	return err
}

// Deactivate disables the account and revokes its sessions.
func (s *Service) Deactivate(ctx context.Context, userID int) error {
	inactive := false
	if err := s.users.UpdateUser(ctx, userID, db.UserUpdate{IsActive: &inactive}); err != nil {
		return err
	}
	_, err := s.RevokeAllSessions(ctx, userID)
	return err
}
