package db

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// translate turns a driver error into an errs kind. Already-typed errors pass through.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var typed *errs.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound("%s: not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return errs.Wrap(errs.KindDuplicate, err, "%s: duplicate entry (%s)", what, pqErr.Constraint)
		case pqForeignKeyViolation:
			return errs.Wrap(errs.KindValidation, err, "%s: referenced entity does not exist", what)
		case pqCheckViolation:
			return errs.Wrap(errs.KindValidation, err, "%s: value out of range", what)
		}
	}
	log.Error().Err(err).Str("op", what).Msg("[db] storage error")
	return errs.Storage(err, "%s failed", what)
}

// expectOne reports NotFound when an UPDATE or DELETE touched no row.
func expectOne(res sql.Result, err error, what string) error {
	if err != nil {
		return translate(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, what)
	}
	if n == 0 {
		return errs.NotFound("%s: not found", what)
	}
	return nil
}

func affected(res sql.Result, err error, what string) (int, error) {
	if err != nil {
		return 0, translate(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, translate(err, what)
	}
	return int(n), nil
}
