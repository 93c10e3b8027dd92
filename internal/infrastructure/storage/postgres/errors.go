package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"purchases/internal/core/apperror"
)

// PostgreSQL error codes the service reacts to.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// TranslateError maps driver errors to AppErrors: no rows to NOT_FOUND, a
// foreign key violation to IN_USE and a unique violation to ALREADY_EXISTS.
// Other errors are returned unchanged.
func TranslateError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound(entity, id)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return apperror.NewInUse(entity, id).
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgUniqueViolation:
		return apperror.NewAlreadyExists(entity, pgErr.ConstraintName, pgErr.Detail).
			WithCause(err)
	}
	return err
}

// IsForeignKeyViolation reports whether err is a PostgreSQL 23503 error.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
