package auth

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// CheckDelay is the pause applied before each credential verification.
// A fixed base plus optional random jitter slows brute force from one device.
type CheckDelay struct {
	Base   time.Duration
	Jitter time.Duration
}

// NewCheckDelay creates a CheckDelay
func NewCheckDelay(base, jitter time.Duration) *CheckDelay {
	return &CheckDelay{Base: base, Jitter: jitter}
}

// cryptoRandIntn returns a secure random number between 0 and max (exclusive)
func cryptoRandIntn(max int64) (int64, error) {
	if max <= 0 {
		return 0, nil
	}

	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return 0, err
	}

	randomValue := binary.BigEndian.Uint64(randomBytes)
	return int64(randomValue % uint64(max)), nil
}

// Duration returns the delay for one attempt
func (d *CheckDelay) Duration() time.Duration {
	if d == nil {
		return 0
	}
	total := d.Base
	if d.Jitter > 0 {
		if n, err := cryptoRandIntn(int64(d.Jitter)); err == nil {
			total += time.Duration(n)
		}
	}
	return total
}

// Wait blocks for the delay or until ctx is done, returning ctx.Err() in that case
func (d *CheckDelay) Wait(ctx context.Context) error {
	delay := d.Duration()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
