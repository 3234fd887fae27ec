package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/workflow"
)

// AssertSnapshotStatus asserts the snapshot is in the expected status.
func AssertSnapshotStatus(t *testing.T, snap workflow.Snapshot, status workflow.Status) {
	t.Helper()
	assert.Equal(t, status, snap.Status, "snapshot status mismatch")
}

// AssertSnapshotFailed asserts a terminal failure with the expected reason
// and a non-empty user-visible message.
func AssertSnapshotFailed(t *testing.T, snap workflow.Snapshot, reason workflow.FailureReason) {
	t.Helper()
	require.True(t, snap.Status.Terminal(), "snapshot not terminal: %s", snap.Status)
	assert.Equal(t, reason, snap.Failure, "failure reason mismatch")
	assert.NotEmpty(t, snap.FailureMessage, "terminal failure carries no message")
}

// AssertSnapshotComplete asserts terminal success with a result payload.
func AssertSnapshotComplete(t *testing.T, snap workflow.Snapshot) {
	t.Helper()
	require.Equal(t, workflow.StatusComplete, snap.Status)
	require.NotNil(t, snap.Result, "complete snapshot carries no result")
	assert.Equal(t, workflow.FailureNone, snap.Failure)
}

// WaitForTerminal blocks until the subscription ends and returns its final
// snapshot, failing the test when timeout elapses first.
func WaitForTerminal(t *testing.T, sub *workflow.Subscription, timeout time.Duration) workflow.Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap, err := sub.Wait(ctx)
	if err != nil {
		t.Fatalf("subscription did not finish within %v (status %s)", timeout, sub.Snapshot().Status)
	}
	return snap
}
