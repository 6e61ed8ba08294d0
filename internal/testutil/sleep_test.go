package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepRecorder_RecordsInOrder(t *testing.T) {
	r := NewSleepRecorder()
	ctx := context.Background()

	require.NoError(t, r.Sleep(ctx, 10*time.Millisecond))
	require.NoError(t, r.Sleep(ctx, 20*time.Millisecond))

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, r.Slept())

	r.Reset()
	assert.Empty(t, r.Slept())
}

func TestSleepRecorder_CanceledContext(t *testing.T) {
	r := NewSleepRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, r.Sleep(ctx, time.Second), context.Canceled)
	assert.Empty(t, r.Slept())
}

func TestSleepRecorder_Concurrent(t *testing.T) {
	r := NewSleepRecorder()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Sleep(context.Background(), time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Len(t, r.Slept(), 10)
}
