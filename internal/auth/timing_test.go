package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestCheckDelay_Wait(t *testing.T) {
	delay := auth.NewCheckDelay(50*time.Millisecond, 0)
	start := time.Now()

	err := delay.Wait(context.Background())

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCheckDelay_Jitter(t *testing.T) {
	delay := auth.NewCheckDelay(10*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 20; i++ {
		d := delay.Duration()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 30*time.Millisecond)
	}
}

func TestCheckDelay_CancelledContext(t *testing.T) {
	delay := auth.NewCheckDelay(5*time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := delay.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheckDelay_ZeroAndNil(t *testing.T) {
	assert.NoError(t, auth.NewCheckDelay(0, 0).Wait(context.Background()))

	var nilDelay *auth.CheckDelay
	assert.Equal(t, time.Duration(0), nilDelay.Duration())
}
