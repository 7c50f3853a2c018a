package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

const userColumns = `
	id, username, email, password_hash, fullname, department, is_active, is_admin,
	auth_provider, ad_dn, created_at, updated_at, last_login`

// inserts a new user, returns its ID.
func (s *pgStore) CreateUser(ctx context.Context, u *model.User) (int, error) {
	provider := u.AuthProvider
	if provider == "" {
		provider = model.AuthProviderLocal
	}
	const q = `
	INSERT INTO users (username, email, password_hash, fullname, department,
	                   is_active, is_admin, auth_provider, ad_dn, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
	RETURNING id;`

	var id int
	err := s.db.QueryRowContext(ctx, q,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.Department,
		u.IsActive, u.IsAdmin, provider, u.ADDN,
	).Scan(&id)
	if err != nil {
		log.Error().Err(err).Str("username", u.Username).Msg("[db] CreateUser: failed to insert user")
		return 0, translate(err, "create user")
	}
	return id, nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	var u model.User
	if err := s.db.GetContext(ctx, &u, `SELECT`+userColumns+` FROM users WHERE id = $1;`, id); err != nil {
		return nil, translate(err, "get user")
	}
	return &u, nil
}

// fetches a user whose username or email equals login exactly.
func (s *pgStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User
	const q = `SELECT` + userColumns + `
	FROM users
	WHERE username = $1 OR email = $1
	ORDER BY (username = $1) DESC
	LIMIT 1;`
	if err := s.db.GetContext(ctx, &u, q, login); err != nil {
		return nil, translate(err, "get user by login")
	}
	return &u, nil
}

func (s *pgStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := s.db.SelectContext(ctx, &out, `SELECT`+userColumns+` FROM users ORDER BY username;`); err != nil {
		return nil, translate(err, "list users")
	}
	return out, nil
}

func (s *pgStore) UpdateUser(ctx context.Context, id int, upd UserUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET
		email      = COALESCE($2, email),
		fullname   = COALESCE($3, fullname),
		department = COALESCE($4, department),
		is_active  = COALESCE($5, is_active),
		is_admin   = COALESCE($6, is_admin),
		updated_at = now()
		WHERE id = $1;`,
		id, upd.Email, upd.FullName, upd.Department, upd.IsActive, upd.IsAdmin,
	)
	return expectOne(res, err, "update user")
}

func (s *pgStore) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1;`,
		id, hash,
	)
	return expectOne(res, err, "update password")
}

func (s *pgStore) TouchLastLogin(ctx context.Context, id int, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1;`, id, at)
	return translate(err, "update last login")
}
