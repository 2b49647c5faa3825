package database

import (
	"errors"

	"github.com/BradenHooton/molar/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapPostgresError converts driver errors into the sentinel errors handlers understand
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrNotFound
		case "23502", "23514": // not_null_violation, check_violation
			return models.ErrBadRequest
		case "22P02": // invalid_text_representation (malformed uuid)
			return models.ErrBadRequest
		}
	}

	return err
}
