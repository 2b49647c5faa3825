package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/jackc/pgx/v5"
)

// LockoutRepository persists per-device login attempt state in Postgres
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the attempt state for a device; an unknown device has a zero state
func (r *LockoutRepository) Get(ctx context.Context, deviceID string) (*models.LoginAttemptState, error) {
	query := `SELECT attempts, blocked_until FROM login_lockouts WHERE device_id = $1`

	var state models.LoginAttemptState
	err := r.db.Pool.QueryRow(ctx, query, deviceID).Scan(&state.FailedAttempts, &state.BlockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.LoginAttemptState{}, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &state, nil
}

// Save upserts the attempt state for a device (last write wins)
func (r *LockoutRepository) Save(ctx context.Context, deviceID string, state *models.LoginAttemptState) error {
	query := `
		INSERT INTO login_lockouts (device_id, attempts, blocked_until, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (device_id) DO UPDATE
		SET attempts = EXCLUDED.attempts, blocked_until = EXCLUDED.blocked_until, updated_at = NOW()
	`
	_, err := r.db.Pool.Exec(ctx, query, deviceID, state.FailedAttempts, state.BlockedUntil)
	return database.MapPostgresError(err)
}

// Clear removes any attempt state for a device
func (r *LockoutRepository) Clear(ctx context.Context, deviceID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM login_lockouts WHERE device_id = $1`, deviceID)
	return database.MapPostgresError(err)
}

// DeleteExpired removes records whose lockout window ended before the cutoff.
// Such records would be reset on their next read anyway.
func (r *LockoutRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM login_lockouts WHERE blocked_until IS NOT NULL AND blocked_until <= $1`, before)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
