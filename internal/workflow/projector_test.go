package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/api"
)

func TestProjectPending(t *testing.T) {
	t.Parallel()

	model := Project(nil, Snapshot{WorkflowID: "wf-1", Status: StatusPending})

	assert.Equal(t, "Workflow queued", model.HeaderText)
	assert.Equal(t, "Waiting for the workflow to start", model.DetailText)
	assert.Empty(t, model.LogLines)
	assert.Empty(t, model.TerminalContent)
	assert.Empty(t, model.TerminalError)
}

func TestProjectRunning(t *testing.T) {
	t.Parallel()

	t.Run("shows the stage label", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{
			Status:     StatusRunning,
			StageLabel: "Predicting structure (ESMFold)",
			LogTail:    []string{"🔄 Starting: run_esmfold"},
		})

		assert.Equal(t, "Workflow running", model.HeaderText)
		assert.Equal(t, "Predicting structure (ESMFold)", model.DetailText)
		assert.Equal(t, []string{"🔄 Starting: run_esmfold"}, model.LogLines)
	})

	t.Run("falls back to a generic detail", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{Status: StatusRunning})
		assert.Equal(t, "Working", model.DetailText)
	})

	t.Run("surfaces reconnect state", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{
			Status:            StatusRunning,
			StageLabel:        "Predicting structure (ESMFold)",
			ConnectionLost:    true,
			ReconnectAttempts: 2,
		})

		assert.Contains(t, model.DetailText, "Connection lost")
		assert.Contains(t, model.DetailText, "attempt 2")
	})

	t.Run("passes the notice through", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{Status: StatusRunning, Notice: "GPU node cold start, retrying"})
		assert.Equal(t, "GPU node cold start, retrying", model.Notice)
	})
}

func TestProjectComplete(t *testing.T) {
	t.Parallel()

	t.Run("uses the workflow result", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{
			Status: StatusComplete,
			Result: &Result{
				Content:      "Predicted structure with pLDDT 91.2",
				ResponseHTML: "<p>Predicted structure</p>",
				PDBData:      "ATOM      1  N   MET A   1",
			},
		})

		assert.Equal(t, "Workflow complete", model.HeaderText)
		assert.Empty(t, model.DetailText)
		assert.Equal(t, "Predicted structure with pLDDT 91.2", model.TerminalContent)
		assert.Equal(t, "<p>Predicted structure</p>", model.ResponseHTML)
		assert.Equal(t, "ATOM      1  N   MET A   1", model.PDBData)
		assert.Empty(t, model.TerminalError, "a successful workflow carries no error text")
	})

	t.Run("falls back to the message content", func(t *testing.T) {
		t.Parallel()

		msg := &api.Message{ID: "msg-1", Role: api.RoleAssistant, Content: "stored answer"}
		model := Project(msg, Snapshot{Status: StatusComplete})

		assert.Equal(t, "stored answer", model.TerminalContent)
	})

	t.Run("empty without result or message", func(t *testing.T) {
		t.Parallel()

		model := Project(nil, Snapshot{Status: StatusComplete})
		assert.Empty(t, model.TerminalContent)
	})
}

func TestProjectTerminalFailures(t *testing.T) {
	t.Parallel()

	backend := Project(nil, Snapshot{
		Status:         StatusFailed,
		Failure:        FailureBackend,
		FailureMessage: "invalid sequence",
	})
	timeout := Project(nil, Snapshot{
		Status:         StatusTimedOut,
		Failure:        FailureTimeout,
		FailureMessage: "The workflow timed out before completing",
	})
	connectivity := Project(nil, Snapshot{
		Status:         StatusFailed,
		Failure:        FailureConnectivity,
		FailureMessage: "Unable to reach the workflow stream after 5 attempts",
	})

	assert.Equal(t, "Workflow failed", backend.HeaderText)
	assert.Equal(t, "Workflow timed out", timeout.HeaderText)
	assert.Equal(t, "Workflow failed", connectivity.HeaderText)

	assert.Equal(t, "Error: invalid sequence", backend.TerminalError)
	assert.Equal(t, "Timed out: The workflow timed out before completing", timeout.TerminalError)
	assert.Equal(t, "Connection lost: Unable to reach the workflow stream after 5 attempts", connectivity.TerminalError)

	// Each failure mode must read differently so the user can tell a
	// backend fault from a dead connection.
	assert.NotEqual(t, backend.TerminalError, timeout.TerminalError)
	assert.NotEqual(t, backend.TerminalError, connectivity.TerminalError)
	assert.NotEqual(t, timeout.TerminalError, connectivity.TerminalError)
}

func TestProjectIsPure(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Status:     StatusRunning,
		StageLabel: "Aggregating results",
		LogTail:    []string{"line 1", "line 2"},
	}
	msg := &api.Message{ID: "msg-1", Content: "original"}

	first := Project(msg, snap)
	second := Project(msg, snap)
	require.Equal(t, first, second)

	// Mutating the returned model must not reach back into the snapshot.
	first.LogLines[0] = "mutated"
	assert.Equal(t, "line 1", snap.LogTail[0])
	assert.Equal(t, "original", msg.Content)
}
