// Package testutil holds small deterministic test doubles shared across
// package tests.
package testutil

import (
	"context"
	"sync"
	"time"
)

// SleepRecorder stands in for a real sleep function in backoff tests. It
// records every requested delay and returns immediately, so retry timing
// can be asserted without the test actually waiting.
//
// Thread-safety: all methods are safe for concurrent use.
type SleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

// NewSleepRecorder creates an empty recorder.
func NewSleepRecorder() *SleepRecorder {
	return &SleepRecorder{}
}

// Sleep records the requested delay and returns nil immediately, unless
// the context is already done.
func (r *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
	return nil
}

// Slept returns a copy of the recorded delays in request order.
func (r *SleepRecorder) Slept() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.slept))
	copy(out, r.slept)
	return out
}

// Reset discards recorded delays for test reuse.
func (r *SleepRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = nil
}
