package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/molar/internal/models"
)

// StatusFunc reports the current lockout status being counted down
type StatusFunc func(ctx context.Context) (models.LockoutStatus, error)

// Tick is one countdown update
type Tick struct {
	Countdown string              `json:"countdown"`
	Remaining time.Duration       `json:"-"`
	State     models.LockoutState `json:"state"`
}

// Countdown polls a lockout status once per interval and publishes the
// remaining time until the device opens again. The last tick published is
// always "00:00:00" with State OPEN unless the countdown is stopped or fails.
type Countdown struct {
	status   StatusFunc
	interval time.Duration
	logger   *slog.Logger
	ticks    chan Tick
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCountdown creates a countdown; interval is normally one second
func NewCountdown(status StatusFunc, interval time.Duration, logger *slog.Logger) *Countdown {
	return &Countdown{
		status:   status,
		interval: interval,
		logger:   logger,
		ticks:    make(chan Tick, 1),
		stopCh:   make(chan struct{}),
	}
}

// Ticks is closed when Run returns
func (c *Countdown) Ticks() <-chan Tick {
	return c.ticks
}

// Run publishes ticks until the lockout opens, ctx is cancelled or Stop is called
func (c *Countdown) Run(ctx context.Context) {
	defer close(c.ticks)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		status, err := c.status(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("countdown status failed", slog.Any("error", err))
			}
			return
		}

		tick := Tick{Countdown: "00:00:00", State: models.LockoutOpen}
		if status.Locked() {
			tick = Tick{Countdown: status.Countdown, Remaining: status.Remaining, State: models.LockoutLocked}
		}
		if !c.publish(ctx, tick) || tick.State == models.LockoutOpen {
			return
		}

		select {
		case <-ticker.C:
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Countdown) publish(ctx context.Context, t Tick) bool {
	select {
	case c.ticks <- t:
		return true
	case <-c.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop ends the countdown; it is safe to call more than once
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
