package models

import (
	"fmt"
	"time"
)

// LoginAttemptState is the persisted lockout record for a single device.
// JSON field names match the record stored by the dashboard client.
type LoginAttemptState struct {
	FailedAttempts int        `json:"attempts" db:"attempts"`
	BlockedUntil   *time.Time `json:"blockedUntil,omitempty" db:"blocked_until"`
}

// IsBlocked reports whether the record refuses logins at the given instant.
func (s *LoginAttemptState) IsBlocked(now time.Time) bool {
	return s != nil && s.BlockedUntil != nil && now.Before(*s.BlockedUntil)
}

// Expired reports whether a lockout window existed and has now passed.
func (s *LoginAttemptState) Expired(now time.Time) bool {
	return s != nil && s.BlockedUntil != nil && !now.Before(*s.BlockedUntil)
}

// LockoutState is the state of the login gate for a device.
type LockoutState string

const (
	LockoutOpen   LockoutState = "OPEN"
	LockoutLocked LockoutState = "LOCKED"
)

// LockoutStatus is the evaluated view of a LoginAttemptState at a point in time.
type LockoutStatus struct {
	State             LockoutState  `json:"state"`
	FailedAttempts    int           `json:"failedAttempts"`
	RemainingAttempts int           `json:"remainingAttempts"`
	BlockedUntil      *time.Time    `json:"blockedUntil,omitempty"`
	Remaining         time.Duration `json:"-"`
	Countdown         string        `json:"countdown,omitempty"`
}

// Locked is shorthand for State == LockoutLocked.
func (s *LockoutStatus) Locked() bool {
	return s.State == LockoutLocked
}

// AttemptOutcome describes the result of a single login submission.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "success"
	AttemptInvalid   AttemptOutcome = "invalid_credentials"
	AttemptLocked    AttemptOutcome = "locked"
)

// AttemptResult is returned to the caller after a login submission.
// Message is empty once the device is locked; the terminal warning replaces it.
type AttemptResult struct {
	Outcome AttemptOutcome
	Status  LockoutStatus
	Message string
}

// FormatCountdown renders d as HH:MM:SS, rounding partial seconds up so the
// display only reaches 00:00:00 when the window has actually elapsed.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "00:00:00"
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
