package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithTestDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := ContextWithTestDeadline(t, time.Minute)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok, "context has no deadline")
	assert.True(t, deadline.After(time.Now()), "deadline already passed")
}

func TestWaitFor(t *testing.T) {
	t.Parallel()

	t.Run("returns once the condition holds", func(t *testing.T) {
		t.Parallel()

		var n atomic.Int32
		WaitFor(t, time.Second, func() bool {
			return n.Add(1) >= 3
		}, "counter never reached 3")
		assert.GreaterOrEqual(t, n.Load(), int32(3))
	})

	t.Run("immediate condition needs one check", func(t *testing.T) {
		t.Parallel()

		calls := 0
		WaitFor(t, time.Second, func() bool {
			calls++
			return true
		}, "")
		assert.Equal(t, 1, calls)
	})
}
