package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/molar/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, models.ErrNotFound},
		{"check", &pgconn.PgError{Code: "23514"}, models.ErrBadRequest},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, models.ErrBadRequest},
		{"unmapped", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPostgresError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}
