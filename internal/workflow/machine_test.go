package workflow

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/stream"
)

func testLogger() *logging.Logger {
	logger := logging.New()
	logger.SetOutput(log.New(io.Discard, "", 0))
	return logger
}

func testMachine() *machine {
	return newMachine("conv-1", "wf-1", testLogger())
}

func TestMachineInitialState(t *testing.T) {
	t.Parallel()

	m := testMachine()
	snap := m.snapshot()

	assert.Equal(t, "wf-1", snap.WorkflowID)
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Equal(t, StatusPending, snap.Status)
	assert.Empty(t, snap.LogTail)
	assert.Zero(t, snap.ReconnectAttempts)
	assert.False(t, m.terminal())
}

func TestMachineConnectedResetsConnectionState(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.noteRetry()
	m.noteRetry()
	m.snap.Notice = "transient problem"

	changed := m.apply(stream.MustNewEvent(stream.EventConnected, stream.ConnectedPayload{}))
	require.True(t, changed)

	snap := m.snapshot()
	assert.Equal(t, StatusPending, snap.Status, "connected must not change status")
	assert.Zero(t, snap.ReconnectAttempts)
	assert.False(t, snap.ConnectionLost)
	assert.Empty(t, snap.Notice)
	assert.False(t, snap.LastEventAt.IsZero())
}

func TestMachinePromotion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event stream.Event
	}{
		{"node", stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "intent_router"})},
		{"status", stream.MustNewEvent(stream.EventStatus, stream.StatusPayload{Detail: "working"})},
		{"logs", stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{{Msg: "started"}}})},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name+" promotes pending to running", func(t *testing.T) {
			t.Parallel()

			m := testMachine()
			require.True(t, m.apply(tt.event))
			assert.Equal(t, StatusRunning, m.snapshot().Status)

			// A second application never regresses the status
			m.apply(tt.event)
			assert.Equal(t, StatusRunning, m.snapshot().Status)
		})
	}
}

func TestMachineStageLabels(t *testing.T) {
	t.Parallel()

	t.Run("known node uses catalog label", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "run_esmfold"}))
		assert.Equal(t, "Predicting structure (ESMFold)", m.snapshot().StageLabel)
	})

	t.Run("unknown node is humanized", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "custom_scoring_stage"}))
		assert.Equal(t, "Custom scoring stage", m.snapshot().StageLabel)
	})

	t.Run("last log line is the fallback label", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{
			{Msg: "🔄 Starting: run_esmfold"},
			{Msg: "folding sequence..."},
		}}))
		assert.Equal(t, "folding sequence...", m.snapshot().StageLabel)
	})

	t.Run("node label beats log fallback", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "run_esmfold"}))
		m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{{Msg: "noisy log line"}}}))
		assert.Equal(t, "Predicting structure (ESMFold)", m.snapshot().StageLabel)
	})

	t.Run("status current_node sets a node label", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventStatus, stream.StatusPayload{CurrentNode: "aggregate_results"}))
		assert.Equal(t, "Aggregating results", m.snapshot().StageLabel)
	})

	t.Run("status detail sets the label", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventStatus, stream.StatusPayload{Detail: "queued on GPU"}))
		assert.Equal(t, "queued on GPU", m.snapshot().StageLabel)
	})
}

func TestMachineLogsAppendInOrder(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{
		{Msg: "one"}, {Msg: "two"},
	}}))
	m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{
		{Msg: "three"},
	}}))

	assert.Equal(t, []string{"one", "two", "three"}, m.snapshot().LogTail)
}

func TestMachineReconnectReplayDoesNotDoubleLogs(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventConnected, stream.ConnectedPayload{}))
	m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{
		{Msg: "one"}, {Msg: "two"},
	}}))

	// The stream drops and a new connection replays the history plus one
	// fresh line.
	m.noteRetry()
	m.apply(stream.MustNewEvent(stream.EventConnected, stream.ConnectedPayload{}))
	m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{
		{Msg: "one"}, {Msg: "two"}, {Msg: "three"},
	}}))

	assert.Equal(t, []string{"one", "two", "three"}, m.snapshot().LogTail)
}

func TestMachineComplete(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "response_formatter"}))
	m.snap.Notice = "stale notice"

	changed := m.apply(stream.MustNewEvent(stream.EventComplete, stream.CompletePayload{
		Content:        "Your protein is stable.",
		PredictionData: &stream.PredictionData{ResponseHTML: "<b>ok</b>"},
		StructureData:  &stream.StructureData{PDBData: "ATOM"},
	}))
	require.True(t, changed)

	snap := m.snapshot()
	assert.Equal(t, StatusComplete, snap.Status)
	assert.True(t, m.terminal())
	assert.Empty(t, snap.Notice)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "Your protein is stable.", snap.Result.Content)
	assert.Equal(t, "<b>ok</b>", snap.Result.ResponseHTML)
	assert.Equal(t, "ATOM", snap.Result.PDBData)
	assert.Equal(t, FailureNone, snap.Failure)
}

func TestMachineRecoverableError(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "run_esmfold"}))

	changed := m.apply(stream.MustNewEvent(stream.EventError, stream.ErrorPayload{
		Error:       "GPU busy, retrying",
		Recoverable: true,
	}))
	require.True(t, changed)

	snap := m.snapshot()
	assert.Equal(t, StatusRunning, snap.Status, "recoverable error must not end the workflow")
	assert.Equal(t, "GPU busy, retrying", snap.Notice)
	assert.False(t, m.terminal())
}

func TestMachineFatalError(t *testing.T) {
	t.Parallel()

	t.Run("carries the backend message", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventError, stream.ErrorPayload{
			Error:       "invalid sequence",
			Recoverable: false,
		}))

		snap := m.snapshot()
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Equal(t, FailureBackend, snap.Failure)
		assert.Equal(t, "invalid sequence", snap.FailureMessage)
	})

	t.Run("empty message gets a default", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventError, stream.ErrorPayload{Recoverable: false}))
		assert.NotEmpty(t, m.snapshot().FailureMessage)
	})
}

func TestMachineTimeout(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventTimeout, stream.TimeoutPayload{}))

	snap := m.snapshot()
	assert.Equal(t, StatusTimedOut, snap.Status)
	assert.Equal(t, FailureTimeout, snap.Failure)
	assert.NotEmpty(t, snap.FailureMessage)
	assert.True(t, m.terminal())
}

func TestMachineTerminalStateIsImmutable(t *testing.T) {
	t.Parallel()

	m := testMachine()
	require.True(t, m.apply(stream.MustNewEvent(stream.EventComplete, stream.CompletePayload{Content: "done"})))
	before := m.snapshot()

	followups := []stream.Event{
		stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "run_foldx"}),
		stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{{Msg: "late"}}}),
		stream.MustNewEvent(stream.EventError, stream.ErrorPayload{Error: "late failure", Recoverable: false}),
		stream.MustNewEvent(stream.EventTimeout, stream.TimeoutPayload{}),
		stream.MustNewEvent(stream.EventConnected, stream.ConnectedPayload{}),
		stream.MustNewEvent(stream.EventHeartbeat, stream.HeartbeatPayload{}),
	}
	for _, ev := range followups {
		assert.False(t, m.apply(ev), "event %s mutated a terminal subscription", ev.Name)
	}

	assert.Equal(t, before, m.snapshot())
}

func TestMachineHeartbeat(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventNode, stream.NodePayload{Node: "run_esmfold"}))
	before := m.snapshot()

	ev := stream.MustNewEvent(stream.EventHeartbeat, stream.HeartbeatPayload{Poll: 10})
	ev.At = time.Now().Add(time.Minute)
	changed := m.apply(ev)

	assert.False(t, changed, "heartbeat is not worth a render")
	after := m.snapshot()
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.StageLabel, after.StageLabel)
	assert.Equal(t, before.LogTail, after.LogTail)
	assert.True(t, after.LastEventAt.After(before.LastEventAt), "heartbeat refreshes the diagnostics timestamp")
}

func TestMachineMalformedPayloadSkipped(t *testing.T) {
	t.Parallel()

	m := testMachine()
	before := m.snapshot()

	bad := stream.Event{Name: stream.EventNode, Data: json.RawMessage(`{"node": 42`), At: time.Now()}
	assert.False(t, m.apply(bad))
	assert.Equal(t, before.Status, m.snapshot().Status)
	assert.Equal(t, before.StageLabel, m.snapshot().StageLabel)
}

func TestMachineUnknownEventSkipped(t *testing.T) {
	t.Parallel()

	m := testMachine()
	before := m.snapshot()

	assert.False(t, m.apply(stream.Event{Name: "message", At: time.Now()}))
	assert.Equal(t, before, m.snapshot())
}

func TestMachineFailConnectivity(t *testing.T) {
	t.Parallel()

	t.Run("ends the subscription with a connectivity message", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		for i := 0; i < 5; i++ {
			m.noteRetry()
		}
		m.failConnectivity(5)

		snap := m.snapshot()
		assert.Equal(t, StatusFailed, snap.Status)
		assert.Equal(t, FailureConnectivity, snap.Failure)
		assert.Contains(t, snap.FailureMessage, "5 attempts")
	})

	t.Run("is a no-op once terminal", func(t *testing.T) {
		t.Parallel()

		m := testMachine()
		m.apply(stream.MustNewEvent(stream.EventComplete, stream.CompletePayload{Content: "done"}))
		m.failConnectivity(5)

		assert.Equal(t, StatusComplete, m.snapshot().Status)
	})
}

func TestMachineSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	m := testMachine()
	m.apply(stream.MustNewEvent(stream.EventLogs, stream.LogsPayload{Logs: []stream.LogLine{{Msg: "one"}}}))
	m.apply(stream.MustNewEvent(stream.EventComplete, stream.CompletePayload{Content: "done"}))

	snap := m.snapshot()
	snap.LogTail[0] = "mutated"
	snap.Result.Content = "mutated"

	fresh := m.snapshot()
	assert.Equal(t, "one", fresh.LogTail[0])
	assert.Equal(t, "done", fresh.Result.Content)
}

func TestLabelForNode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Routing request", labelForNode("intent_router"))
	assert.Equal(t, "Assigning EC number (CLEAN)", labelForNode("run_clean_ec"))
	assert.Equal(t, "My stage", labelForNode("my_stage"))
	assert.Equal(t, "", labelForNode(""))
}
