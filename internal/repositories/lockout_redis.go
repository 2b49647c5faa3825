package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/molar/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisLockoutStore keeps per-device attempt state as a JSON blob in Redis,
// in the same { blockedUntil, attempts } shape the dashboard persists locally.
type RedisLockoutStore struct {
	client redis.Cmdable
	margin time.Duration
	logger *slog.Logger
}

// NewRedisLockoutStore creates a store. A locked record expires margin after
// its blockedUntil; records that are not locked never expire.
func NewRedisLockoutStore(client redis.Cmdable, margin time.Duration, logger *slog.Logger) *RedisLockoutStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLockoutStore{client: client, margin: margin, logger: logger}
}

func lockoutKey(deviceID string) string {
	return fmt.Sprintf("lockout:%s", deviceID)
}

// Get returns the attempt state for a device; a missing key is a zero state
func (s *RedisLockoutStore) Get(ctx context.Context, deviceID string) (*models.LoginAttemptState, error) {
	raw, err := s.client.Get(ctx, lockoutKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.LoginAttemptState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get lockout: %w", err)
	}

	var state models.LoginAttemptState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("discarding unreadable lockout record",
			slog.String("device_id", deviceID),
			slog.Any("error", err),
		)
		return &models.LoginAttemptState{}, nil
	}
	return &state, nil
}

// Save overwrites the attempt state for a device
func (s *RedisLockoutStore) Save(ctx context.Context, deviceID string, state *models.LoginAttemptState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode lockout: %w", err)
	}
	if err := s.client.Set(ctx, lockoutKey(deviceID), raw, s.expiry(state)).Err(); err != nil {
		return fmt.Errorf("redis set lockout: %w", err)
	}
	return nil
}

// expiry is zero (keep forever) unless the device is locked
func (s *RedisLockoutStore) expiry(state *models.LoginAttemptState) time.Duration {
	if state.BlockedUntil == nil {
		return 0
	}
	ttl := time.Until(*state.BlockedUntil) + s.margin
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// Clear deletes the attempt state for a device
func (s *RedisLockoutStore) Clear(ctx context.Context, deviceID string) error {
	if err := s.client.Del(ctx, lockoutKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("redis del lockout: %w", err)
	}
	return nil
}
