package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const sessionColumns = `
	id, session_token, user_id, created_at, last_activity, expires_at, is_active,
	ip_address, user_agent`

func (s *pgStore) InsertSession(ctx context.Context, sess *model.Session) error {
	return insertSession(ctx, s.db, sess)
}

func insertSession(ctx context.Context, q sqlx.ExtContext, sess *model.Session) error {
	const stmt = `
	INSERT INTO sessions (session_token, user_id, created_at, last_activity, expires_at,
	                      is_active, ip_address, user_agent)
	VALUES ($1, $2, $3, $3, $4, true, $5, $6)
	RETURNING id;`

	err := q.QueryRowxContext(ctx, stmt,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.IPAddress, sess.UserAgent,
	).Scan(&sess.ID)
	if err != nil {
		log.Error().Err(err).Int("user_id", sess.UserID).Msg("[db] InsertSession: failed to insert session")
		return translate(err, "create session")
	}
	sess.LastActivity = sess.CreatedAt
	sess.IsActive = true
	return nil
}

func (s *pgStore) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		`SELECT`+sessionColumns+` FROM sessions WHERE session_token = $1;`, token)
	if err != nil {
		return nil, translate(err, "get session")
	}
	return &sess, nil
}

func (s *pgStore) TouchSession(ctx context.Context, id int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = $2 WHERE id = $1 AND is_active;`, id, at)
	return translate(err, "touch session")
}

// reports whether an active session was switched off.
func (s *pgStore) RevokeSessionByToken(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE session_token = $1 AND is_active;`, token)
	n, err := affected(res, err, "revoke session")
	return n > 0, err
}

func (s *pgStore) RevokeSessionsByID(ctx context.Context, ids []int) (int, error) {
	return revokeSessionsByID(ctx, s.db, ids)
}

func revokeSessionsByID(ctx context.Context, q sqlx.ExecerContext, ids []int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := q.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE id = ANY($1) AND is_active;`, pq.Array(ids))
	return affected(res, err, "revoke sessions")
}

func (s *pgStore) RevokeUserSessions(ctx context.Context, userID int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE user_id = $1 AND is_active;`, userID)
	return affected(res, err, "revoke user sessions")
}

// lists the user's valid sessions, most recently active first.
func (s *pgStore) ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error) {
	return listActiveSessions(ctx, s.db, userID, now)
}

func listActiveSessions(ctx context.Context, q sqlx.QueryerContext, userID int, now time.Time) ([]model.Session, error) {
	var out []model.Session
	const stmt = `SELECT` + sessionColumns + `
	FROM sessions
	WHERE user_id = $1 AND is_active AND expires_at > $2
	ORDER BY last_activity DESC, id DESC;`
	if err := sqlx.SelectContext(ctx, q, &out, stmt, userID, now); err != nil {
		return nil, translate(err, "list sessions")
	}
	return out, nil
}

func (s *pgStore) DeactivateExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = false WHERE is_active AND expires_at < $1;`, now)
	return affected(res, err, "sweep sessions")
}

// SessionTx exposes one user's sessions inside a transaction holding that
// user's row lock. Its methods mirror the Store methods of the same name.
type SessionTx interface {
	ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error)
	RevokeSessionsByID(ctx context.Context, ids []int) (int, error)
	InsertSession(ctx context.Context, s *model.Session) error
}

// WithUserLock runs fn in a transaction after locking the user row, so session
// cap enforcement for one user is serialized.
func (s *pgStore) WithUserLock(ctx context.Context, userID int, fn func(tx SessionTx) error) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var id int
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM users WHERE id = $1 FOR UPDATE;`, userID); err != nil {
			return translate(err, "lock user")
		}
		return fn(&pgSessionTx{tx: tx})
	})
}

type pgSessionTx struct {
	tx *sqlx.Tx
}

func (t *pgSessionTx) ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]model.Session, error) {
	return listActiveSessions(ctx, t.tx, userID, now)
}

func (t *pgSessionTx) RevokeSessionsByID(ctx context.Context, ids []int) (int, error) {
	return revokeSessionsByID(ctx, t.tx, ids)
}

func (t *pgSessionTx) InsertSession(ctx context.Context, sess *model.Session) error {
	return insertSession(ctx, t.tx, sess)
}
