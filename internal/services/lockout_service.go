package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/metrics"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/BradenHooton/molar/pkg/logger"
)

// LockoutStore persists per-device attempt state. Get returns a zero state for
// an unknown device.
type LockoutStore interface {
	Get(ctx context.Context, deviceID string) (*models.LoginAttemptState, error)
	Save(ctx context.Context, deviceID string, state *models.LoginAttemptState) error
	Clear(ctx context.Context, deviceID string) error
}

// Delayer pauses before a credential check
type Delayer interface {
	Wait(ctx context.Context) error
}

// LockoutConfig holds the lockout thresholds
type LockoutConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// DefaultLockoutConfig is six failures followed by a two hour cool-down
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{Threshold: 6, Cooldown: 2 * time.Hour}
}

// LockoutService guards the login form of each device with an
// OPEN/LOCKED state machine.
type LockoutService struct {
	store    LockoutStore
	verifier auth.CredentialVerifier
	delay    Delayer
	config   LockoutConfig
	logger   *slog.Logger
	audit    *logger.AuditLogger
	now      func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store LockoutStore, verifier auth.CredentialVerifier, delay Delayer, config LockoutConfig, log *slog.Logger) *LockoutService {
	return &LockoutService{
		store:    store,
		verifier: verifier,
		delay:    delay,
		config:   config,
		logger:   log,
		audit:    logger.NewAuditLogger(log),
		now:      time.Now,
	}
}

// SetClock replaces the time source
func (s *LockoutService) SetClock(now func() time.Time) {
	s.now = now
}

// Threshold is the number of failures that locks a device
func (s *LockoutService) Threshold() int {
	return s.config.Threshold
}

func (s *LockoutService) evaluate(state *models.LoginAttemptState, now time.Time) models.LockoutStatus {
	status := models.LockoutStatus{
		State:             models.LockoutOpen,
		FailedAttempts:    state.FailedAttempts,
		RemainingAttempts: s.config.Threshold - state.FailedAttempts,
	}
	if status.RemainingAttempts < 0 {
		status.RemainingAttempts = 0
	}
	if state.IsBlocked(now) {
		until := *state.BlockedUntil
		status.State = models.LockoutLocked
		status.BlockedUntil = &until
		status.RemainingAttempts = 0
		status.Remaining = until.Sub(now)
		status.Countdown = models.FormatCountdown(status.Remaining)
	}
	return status
}

// load reads the device state, resetting a record whose lockout has expired
func (s *LockoutService) load(ctx context.Context, deviceID string, now time.Time) (*models.LoginAttemptState, error) {
	state, err := s.store.Get(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("load lockout state: %w", err)
	}
	if state == nil {
		state = &models.LoginAttemptState{}
	}
	if state.Expired(now) {
		if err := s.store.Clear(ctx, deviceID); err != nil {
			return nil, fmt.Errorf("reset expired lockout: %w", err)
		}
		s.logger.Info("lockout expired", slog.String("device", logger.TruncateDevice(deviceID)))
		state = &models.LoginAttemptState{}
	}
	return state, nil
}

// Status returns the current gate state for a device
func (s *LockoutService) Status(ctx context.Context, deviceID string) (models.LockoutStatus, error) {
	now := s.now()
	state, err := s.load(ctx, deviceID, now)
	if err != nil {
		s.logger.Error("failed to read lockout status", slog.Any("error", err))
		return models.LockoutStatus{}, err
	}
	return s.evaluate(state, now), nil
}

// Attempt processes one login submission. A locked device is rejected without
// consulting the verifier; otherwise the check delay runs before verification.
func (s *LockoutService) Attempt(ctx context.Context, deviceID string, creds auth.Credentials) (*models.AttemptResult, error) {
	now := s.now()
	state, err := s.load(ctx, deviceID, now)
	if err != nil {
		s.logger.Error("failed to read lockout state", slog.Any("error", err))
		return nil, err
	}

	if state.IsBlocked(now) {
		s.record(deviceID, creds.Username, models.AttemptLocked)
		return &models.AttemptResult{Outcome: models.AttemptLocked, Status: s.evaluate(state, now)}, nil
	}

	if s.delay != nil {
		if err := s.delay.Wait(ctx); err != nil {
			return nil, err
		}
	}

	verifyErr := s.verifier.Verify(ctx, creds)
	if verifyErr != nil && !errors.Is(verifyErr, models.ErrInvalidCredentials) {
		s.logger.Error("credential verifier failed", slog.Any("error", verifyErr))
		return nil, fmt.Errorf("verify credentials: %w", verifyErr)
	}

	// Re-read the clock: the delay and verifier take real time.
	now = s.now()

	if verifyErr == nil {
		if err := s.store.Clear(ctx, deviceID); err != nil {
			s.logger.Error("failed to clear lockout state", slog.Any("error", err))
			return nil, fmt.Errorf("clear lockout state: %w", err)
		}
		s.record(deviceID, creds.Username, models.AttemptSucceeded)
		return &models.AttemptResult{
			Outcome: models.AttemptSucceeded,
			Status:  s.evaluate(&models.LoginAttemptState{}, now),
		}, nil
	}

	next := &models.LoginAttemptState{FailedAttempts: state.FailedAttempts + 1}
	locked := next.FailedAttempts >= s.config.Threshold
	if locked {
		until := now.Add(s.config.Cooldown)
		next.BlockedUntil = &until
	}
	if err := s.store.Save(ctx, deviceID, next); err != nil {
		s.logger.Error("failed to save lockout state", slog.Any("error", err))
		return nil, fmt.Errorf("save lockout state: %w", err)
	}

	status := s.evaluate(next, now)
	if locked {
		s.record(deviceID, creds.Username, models.AttemptLocked)
		metrics.RecordLockout()
		s.audit.LogLockout(deviceID, next.FailedAttempts, *next.BlockedUntil)
		return &models.AttemptResult{Outcome: models.AttemptLocked, Status: status}, nil
	}

	s.record(deviceID, creds.Username, models.AttemptInvalid)
	return &models.AttemptResult{
		Outcome: models.AttemptInvalid,
		Status:  status,
		Message: fmt.Sprintf("Invalid username or password. %d attempts remaining.", status.RemainingAttempts),
	}, nil
}

func (s *LockoutService) record(deviceID, username string, outcome models.AttemptOutcome) {
	metrics.RecordLoginAttempt(string(outcome))
	event := logger.AuditEvent{
		EventType: "login",
		Operator:  username,
		DeviceID:  deviceID,
		Success:   outcome == models.AttemptSucceeded,
	}
	if outcome != models.AttemptSucceeded {
		event.FailureReason = string(outcome)
	}
	s.audit.LogLoginAttempt(event)
}

// Unlock clears any lockout for a device. It backs the operator CLI.
func (s *LockoutService) Unlock(ctx context.Context, deviceID string) error {
	if err := s.store.Clear(ctx, deviceID); err != nil {
		return fmt.Errorf("clear lockout state: %w", err)
	}
	s.logger.Info("lockout cleared manually", slog.String("device", logger.TruncateDevice(deviceID)))
	return nil
}
