package store

import (
	"context"
	"time"
)

// RetryConfig bounds the automatic retry of read-only store calls. Updates
// are never governed by this config; they run exactly once.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, first attempt included.
	MaxAttempts int

	// BaseDelay is the wait before the first retry; each further retry
	// doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the doubled delay.
	MaxDelay time.Duration
}

// DefaultRetryConfig returns the retry bounds used when a client is built
// without explicit configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// Delay returns the wait before retry number attempt (0-based): BaseDelay
// doubled per attempt, capped at MaxDelay.
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// sleepFunc waits for a delay or until the context is done. Injected so
// tests run backoff schedules without wall-clock waits.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
