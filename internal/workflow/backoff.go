package workflow

import (
	"sync"
	"time"
)

// Backoff is the reconnection policy: exponential delays from Base, giving
// up after MaxAttempts consecutive failures.
type Backoff struct {
	Base        time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the standard policy: 1s base delay, five attempts.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, MaxAttempts: 5}
}

// Delay returns the wait before the given attempt, counted from 1:
// Base * 2^(attempt-1).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return b.Base << (attempt - 1)
}

// Exhausted reports whether the policy allows no further retry after the
// given number of consecutive failed attempts.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}

// retryTimer is the scheduled-retry slot for one subscription. At most one
// retry may be pending at a time: Schedule while armed is a no-op, and
// Cancel deterministically prevents a stale retry from firing, however fast
// the connection flaps.
type retryTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   int
	c     chan time.Time
}

func newRetryTimer() *retryTimer {
	return &retryTimer{c: make(chan time.Time, 1)}
}

// Schedule arms the timer to fire after d. It reports false, without
// rescheduling, if a retry is already pending.
func (t *retryTimer) Schedule(d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return false
	}
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { t.fire(gen) })
	return true
}

func (t *retryTimer) fire(gen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A fire racing a Cancel loses: the generation moved on.
	if gen != t.gen {
		return
	}
	t.timer = nil
	select {
	case t.c <- time.Now():
	default:
	}
}

// C delivers one tick per fired retry.
func (t *retryTimer) C() <-chan time.Time {
	return t.c
}

// Cancel stops any pending retry and discards a tick that already fired but
// was not yet consumed. Safe to call at any time, from any goroutine.
func (t *retryTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	select {
	case <-t.c:
	default:
	}
}

// Pending reports whether a retry is currently scheduled.
func (t *retryTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
