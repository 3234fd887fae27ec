package testutil

import (
	"context"
	"testing"
	"time"
)

// Default timeouts for test operations.
const (
	// DefaultStreamTimeout bounds waiting on stream scenarios: a scripted
	// workflow run, a reconnect cycle, a heartbeat.
	DefaultStreamTimeout = 10 * time.Second

	// DefaultBackendTimeout bounds whole mock-backend round trips.
	DefaultBackendTimeout = 30 * time.Second

	// DefaultTestBuffer is subtracted from the test deadline so cleanup
	// still runs before the test binary is killed.
	DefaultTestBuffer = 5 * time.Second

	// waitPollInterval is how often WaitFor re-checks its condition.
	waitPollInterval = 10 * time.Millisecond
)

// ContextWithTestDeadline creates a context that respects the test's
// deadline, minus a cleanup buffer. If the test has no deadline, or the
// adjusted deadline is already in the past, it falls back to the provided
// duration.
func ContextWithTestDeadline(t *testing.T, fallback time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	if deadline, ok := t.Deadline(); ok {
		adjusted := deadline.Add(-DefaultTestBuffer)
		if time.Until(adjusted) > 0 {
			return context.WithDeadline(context.Background(), adjusted)
		}
	}
	return context.WithTimeout(context.Background(), fallback)
}

// WaitFor polls cond until it reports true, failing the test fatally when
// timeout elapses first.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
		time.Sleep(waitPollInterval)
	}
}
