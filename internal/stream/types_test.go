package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	ev, err := NewEvent(EventNode, NodePayload{Node: "run_esmfold"})
	require.NoError(t, err)

	assert.Equal(t, EventNode, ev.Name)
	assert.JSONEq(t, `{"node":"run_esmfold"}`, string(ev.Data))
	assert.False(t, ev.At.IsZero())
}

func TestMustNewEventPanicsOnUnserializable(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustNewEvent(EventStatus, map[string]any{"bad": make(chan int)})
	})
}

func TestEventAccessors(t *testing.T) {
	t.Parallel()

	t.Run("connected", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventConnected, ConnectedPayload{
			WorkflowID:  "wf-1",
			Status:      "active",
			CurrentNode: "intent_router",
		})

		p, err := ev.Connected()
		require.NoError(t, err)
		assert.Equal(t, "wf-1", p.WorkflowID)
		assert.Equal(t, "intent_router", p.CurrentNode)

		_, err = ev.Node()
		assert.Error(t, err)
	})

	t.Run("node", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventNode, NodePayload{Node: "run_esmfold", Status: "active"})

		p, err := ev.Node()
		require.NoError(t, err)
		assert.Equal(t, "run_esmfold", p.Node)

		_, err = ev.Complete()
		assert.Error(t, err)
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventStatus, StatusPayload{CurrentNode: "aggregate_results", Detail: "merging"})

		p, err := ev.Status()
		require.NoError(t, err)
		assert.Equal(t, "aggregate_results", p.CurrentNode)
		assert.Equal(t, "merging", p.Detail)
	})

	t.Run("logs", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventLogs, LogsPayload{Logs: []LogLine{
			{Msg: "🔄 Starting: run_esmfold"},
			{Msg: "✅ Completed: run_esmfold"},
		}})

		p, err := ev.Logs()
		require.NoError(t, err)
		require.Len(t, p.Logs, 2)
		assert.Equal(t, "🔄 Starting: run_esmfold", p.Logs[0].Msg)
		assert.Equal(t, "✅ Completed: run_esmfold", p.Logs[1].Msg)
	})

	t.Run("complete", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventComplete, CompletePayload{
			Content:        "All done.",
			PredictionData: &PredictionData{ResponseHTML: "<p>result</p>"},
			StructureData:  &StructureData{PDBData: "ATOM      1  N   MET A   1"},
		})

		p, err := ev.Complete()
		require.NoError(t, err)
		assert.Equal(t, "All done.", p.Content)
		require.NotNil(t, p.PredictionData)
		assert.Equal(t, "<p>result</p>", p.PredictionData.ResponseHTML)
		require.NotNil(t, p.StructureData)
		assert.Contains(t, p.StructureData.PDBData, "ATOM")
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventError, ErrorPayload{Error: "GPU pool exhausted", Recoverable: true})

		p, err := ev.ErrorInfo()
		require.NoError(t, err)
		assert.Equal(t, "GPU pool exhausted", p.Error)
		assert.True(t, p.Recoverable)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventTimeout, TimeoutPayload{Message: "Workflow stream timed out"})

		p, err := ev.Timeout()
		require.NoError(t, err)
		assert.Equal(t, "Workflow stream timed out", p.Message)
	})

	t.Run("heartbeat", func(t *testing.T) {
		t.Parallel()

		ev := MustNewEvent(EventHeartbeat, HeartbeatPayload{Poll: 10, Status: "active"})

		p, err := ev.Heartbeat()
		require.NoError(t, err)
		assert.Equal(t, 10, p.Poll)
	})
}

func TestEventAccessorEmptyPayload(t *testing.T) {
	t.Parallel()

	ev := Event{Name: EventHeartbeat}

	p, err := ev.Heartbeat()
	require.NoError(t, err)
	assert.Equal(t, 0, p.Poll)

	ev = Event{Name: EventTimeout}
	tp, err := ev.Timeout()
	require.NoError(t, err)
	assert.Empty(t, tp.Message)
}

func TestEventAccessorMalformedPayload(t *testing.T) {
	t.Parallel()

	ev := Event{Name: EventNode, Data: json.RawMessage(`{"node": 42`)}

	_, err := ev.Node()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal node payload")
}

func TestEventAccessorWrongNameError(t *testing.T) {
	t.Parallel()

	ev := MustNewEvent(EventLogs, LogsPayload{})

	_, err := ev.ErrorInfo()
	require.Error(t, err)
	assert.Equal(t, "event is logs, not error", err.Error())
}
