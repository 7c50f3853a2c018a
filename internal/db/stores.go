package db

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/model"
)

func (s *pgStore) CreateStore(ctx context.Context, code, location string) (*model.Store, error) {
	var st model.Store
	const q = `
	INSERT INTO stores (code, location) VALUES ($1, $2)
	RETURNING id, code, location;`
	if err := s.db.GetContext(ctx, &st, q, code, location); err != nil {
		log.Error().Err(err).Str("code", code).Msg("[db] CreateStore: failed to insert store")
		return nil, translate(err, "create store")
	}
	return &st, nil
}

func (s *pgStore) GetStoreByID(ctx context.Context, id int) (*model.Store, error) {
	var st model.Store
	if err := s.db.GetContext(ctx, &st, `SELECT id, code, location FROM stores WHERE id = $1;`, id); err != nil {
		return nil, translate(err, "get store")
	}
	return &st, nil
}

func (s *pgStore) GetStoreByCode(ctx context.Context, code string) (*model.Store, error) {
	var st model.Store
	if err := s.db.GetContext(ctx, &st, `SELECT id, code, location FROM stores WHERE code = $1;`, code); err != nil {
		return nil, translate(err, "get store")
	}
	return &st, nil
}

// matches search against code or location, case-insensitively. Empty lists all.
func (s *pgStore) ListStores(ctx context.Context, search string) ([]model.Store, error) {
	var out []model.Store
	const q = `
	SELECT id, code, location FROM stores
	WHERE $1::text = '' OR code ILIKE '%' || $1::text || '%' OR location ILIKE '%' || $1::text || '%'
	ORDER BY code;`
	if err := s.db.SelectContext(ctx, &out, q, search); err != nil {
		return nil, translate(err, "list stores")
	}
	return out, nil
}

func (s *pgStore) CountStores(ctx context.Context, search string) (int, error) {
	var n int
	const q = `
	SELECT count(*) FROM stores
	WHERE $1::text = '' OR code ILIKE '%' || $1::text || '%' OR location ILIKE '%' || $1::text || '%';`
	if err := s.db.GetContext(ctx, &n, q, search); err != nil {
		return 0, translate(err, "count stores")
	}
	return n, nil
}

func (s *pgStore) ListStoreCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := s.db.SelectContext(ctx, &codes, `SELECT code FROM stores ORDER BY code;`); err != nil {
		return nil, translate(err, "list store codes")
	}
	return codes, nil
}

func (s *pgStore) UpdateStore(ctx context.Context, id int, code, location *string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE stores
		SET
		code     = COALESCE($2, code),
		location = COALESCE($3, location)
		WHERE id = $1;`,
		id, code, location,
	)
	return expectOne(res, err, "update store")
}

func (s *pgStore) DeleteStore(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1;`, id)
	return expectOne(res, err, "delete store")
}
