package workflow

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	backoff := DefaultBackoff()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1000 * time.Millisecond},
		{2, 2000 * time.Millisecond},
		{3, 4000 * time.Millisecond},
		{4, 8000 * time.Millisecond},
		{5, 16000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.Delay(tt.attempt), "attempt %d", tt.attempt)
	}

	// Attempts below 1 are clamped
	assert.Equal(t, time.Second, backoff.Delay(0))
}

func TestBackoffExhausted(t *testing.T) {
	t.Parallel()

	backoff := DefaultBackoff()

	for attempt := 1; attempt < 5; attempt++ {
		assert.False(t, backoff.Exhausted(attempt), "attempt %d", attempt)
	}
	assert.True(t, backoff.Exhausted(5))
	assert.True(t, backoff.Exhausted(6))
}

func TestRetryTimer(t *testing.T) {
	t.Parallel()

	t.Run("fires after the delay", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()
		require.True(t, timer.Schedule(5*time.Millisecond))

		select {
		case <-timer.C():
		case <-time.After(2 * time.Second):
			t.Fatal("timer never fired")
		}
		assert.False(t, timer.Pending())
	})

	t.Run("schedule while pending is a no-op", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()
		require.True(t, timer.Schedule(20*time.Millisecond))
		assert.False(t, timer.Schedule(time.Millisecond))
		assert.False(t, timer.Schedule(time.Millisecond))

		select {
		case <-timer.C():
		case <-time.After(2 * time.Second):
			t.Fatal("timer never fired")
		}

		// Only the first schedule armed anything
		select {
		case <-timer.C():
			t.Fatal("duplicate schedule produced a second tick")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancel prevents a pending retry from firing", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()
		require.True(t, timer.Schedule(20*time.Millisecond))
		timer.Cancel()

		select {
		case <-timer.C():
			t.Fatal("cancelled timer fired")
		case <-time.After(100 * time.Millisecond):
		}
		assert.False(t, timer.Pending())
	})

	t.Run("cancel discards an unconsumed tick", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()
		require.True(t, timer.Schedule(time.Millisecond))

		require.Eventually(t, func() bool { return !timer.Pending() }, 2*time.Second, time.Millisecond)
		timer.Cancel()

		select {
		case <-timer.C():
			t.Fatal("stale tick survived cancel")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("can be scheduled again after firing", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()
		require.True(t, timer.Schedule(time.Millisecond))
		<-timer.C()
		require.True(t, timer.Schedule(time.Millisecond))

		select {
		case <-timer.C():
		case <-time.After(2 * time.Second):
			t.Fatal("rescheduled timer never fired")
		}
	})

	t.Run("exactly one schedule wins under flapping", func(t *testing.T) {
		t.Parallel()

		timer := newRetryTimer()

		var scheduled atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if timer.Schedule(50 * time.Millisecond) {
					scheduled.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), scheduled.Load())
	})
}
