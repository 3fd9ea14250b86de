package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"library_lending/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErr(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func isUniqueViolation(err error, constraint string) bool {
	pe, ok := pgErr(err)
	return ok && pe.Code == pgUniqueViolation && (constraint == "" || pe.ConstraintName == constraint)
}

func isForeignKeyViolation(err error) bool {
	pe, ok := pgErr(err)
	return ok && pe.Code == pgForeignKeyViolation
}

// notFound maps gorm's missing-row error onto a NotFound with msg and passes anything else through.
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}
