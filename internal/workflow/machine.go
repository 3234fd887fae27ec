package workflow

import (
	"fmt"
	"strings"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/stream"
)

// nodeLabels maps workflow node names to the stage labels shown while that
// node runs. Unknown nodes get a humanized rendering of the raw name.
var nodeLabels = map[string]string{
	"intent_router":      "Routing request",
	"input_parser":       "Parsing input",
	"check_structure":    "Checking structure",
	"run_esmfold":        "Predicting structure (ESMFold)",
	"run_alphafold":      "Predicting structure (AlphaFold)",
	"run_fpocket":        "Analyzing pockets (fpocket)",
	"property_dispatch":  "Dispatching property predictions",
	"run_foldx":          "Estimating stability (FoldX)",
	"run_tomer":          "Predicting optimal temperature (TOMER)",
	"run_clean_ec":       "Assigning EC number (CLEAN)",
	"run_deepenzyme":     "Predicting kcat (DeepEnzyme)",
	"run_temberture":     "Predicting melting temperature (TemBERTure)",
	"aggregate_results":  "Aggregating results",
	"response_formatter": "Formatting response",
	"fallback_response":  "Preparing response",
	"theory_response":    "Answering from background knowledge",
	"error_response":     "Reporting error",
}

func labelForNode(node string) string {
	if label, ok := nodeLabels[node]; ok {
		return label
	}
	label := strings.ReplaceAll(node, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// machine is the event reducer for one subscription. It is mutated only on
// the subscription's runner goroutine, so it needs no locking; everything it
// exposes to other goroutines leaves through deep-copied Snapshots.
type machine struct {
	snap Snapshot

	// stageFromNode records that StageLabel came from a node or status
	// event, so later log lines stop overwriting it.
	stageFromNode bool

	logger *logging.Logger
}

func newMachine(conversationID, workflowID string, logger *logging.Logger) *machine {
	if logger == nil {
		logger = logging.Component("workflow")
	}
	return &machine{
		snap: Snapshot{
			WorkflowID:     workflowID,
			ConversationID: conversationID,
			Status:         StatusPending,
		},
		logger: logger,
	}
}

func (m *machine) terminal() bool {
	return m.snap.Status.Terminal()
}

// snapshot returns a deep copy of the current state.
func (m *machine) snapshot() Snapshot {
	snap := m.snap
	snap.LogTail = append([]string(nil), m.snap.LogTail...)
	if m.snap.Result != nil {
		result := *m.snap.Result
		snap.Result = &result
	}
	return snap
}

// promote moves pending to running. Progress events imply the workflow is
// executing; nothing ever moves status backwards.
func (m *machine) promote() {
	if m.snap.Status == StatusPending {
		m.snap.Status = StatusRunning
	}
}

// apply folds one stream event into the state and reports whether consumers
// should see a new snapshot. Once the status is terminal every event is
// discarded. Malformed payloads are skipped, not fatal: a lost detail update
// must not kill a live subscription.
func (m *machine) apply(ev stream.Event) bool {
	if m.terminal() {
		m.logger.Debug("event after terminal status discarded", "event", ev.Name, "status", m.snap.Status)
		return false
	}

	switch ev.Name {
	case stream.EventConnected:
		m.snap.LastEventAt = ev.At
		m.snap.ConnectionLost = false
		m.snap.ReconnectAttempts = 0
		m.snap.Notice = ""
		// The server replays the full log history on every connection, so
		// the tail restarts from empty to keep the replay from doubling it.
		m.snap.LogTail = nil
		return true

	case stream.EventNode:
		payload, err := ev.Node()
		if err != nil {
			m.logger.Warn("bad node payload skipped", "error", err)
			return false
		}
		m.snap.LastEventAt = ev.At
		m.promote()
		if payload.Node != "" {
			m.snap.StageLabel = labelForNode(payload.Node)
			m.stageFromNode = true
		}
		return true

	case stream.EventStatus:
		payload, err := ev.Status()
		if err != nil {
			m.logger.Warn("bad status payload skipped", "error", err)
			return false
		}
		m.snap.LastEventAt = ev.At
		m.promote()
		// Server status strings are informational; only terminal events
		// drive terminal transitions.
		switch {
		case payload.CurrentNode != "":
			m.snap.StageLabel = labelForNode(payload.CurrentNode)
			m.stageFromNode = true
		case payload.Detail != "":
			m.snap.StageLabel = payload.Detail
			m.stageFromNode = true
		}
		return true

	case stream.EventLogs:
		payload, err := ev.Logs()
		if err != nil {
			m.logger.Warn("bad logs payload skipped", "error", err)
			return false
		}
		m.snap.LastEventAt = ev.At
		m.promote()
		for _, line := range payload.Logs {
			m.snap.LogTail = append(m.snap.LogTail, line.Msg)
		}
		if !m.stageFromNode && len(payload.Logs) > 0 {
			m.snap.StageLabel = payload.Logs[len(payload.Logs)-1].Msg
		}
		return true

	case stream.EventComplete:
		payload, err := ev.Complete()
		if err != nil {
			m.logger.Warn("bad complete payload skipped", "error", err)
			return false
		}
		m.snap.LastEventAt = ev.At
		m.snap.Status = StatusComplete
		m.snap.Notice = ""
		result := &Result{Content: payload.Content}
		if payload.PredictionData != nil {
			result.ResponseHTML = payload.PredictionData.ResponseHTML
		}
		if payload.StructureData != nil {
			result.PDBData = payload.StructureData.PDBData
		}
		m.snap.Result = result
		return true

	case stream.EventError:
		payload, err := ev.ErrorInfo()
		if err != nil {
			m.logger.Warn("bad error payload skipped", "error", err)
			return false
		}
		m.snap.LastEventAt = ev.At
		if payload.Recoverable {
			message := payload.Error
			if message == "" {
				message = "The workflow reported a temporary problem"
			}
			m.snap.Notice = message
			return true
		}
		message := payload.Error
		if message == "" {
			message = "The workflow reported an unrecoverable error"
		}
		m.snap.Status = StatusFailed
		m.snap.Failure = FailureBackend
		m.snap.FailureMessage = message
		m.snap.Notice = ""
		return true

	case stream.EventTimeout:
		payload, err := ev.Timeout()
		if err != nil {
			m.logger.Warn("bad timeout payload skipped", "error", err)
			return false
		}
		message := payload.Message
		if message == "" {
			message = "The workflow timed out before completing"
		}
		m.snap.LastEventAt = ev.At
		m.snap.Status = StatusTimedOut
		m.snap.Failure = FailureTimeout
		m.snap.FailureMessage = message
		m.snap.Notice = ""
		return true

	case stream.EventHeartbeat:
		// Keep-alive only. It refreshes the diagnostics timestamp but must
		// not change status, stage label, or the log tail, and it is not
		// worth a render.
		m.snap.LastEventAt = ev.At
		return false

	default:
		m.logger.Debug("unknown event skipped", "event", ev.Name)
		return false
	}
}

// noteRetry records one unexpected close and returns the consecutive attempt
// number.
func (m *machine) noteRetry() int {
	m.snap.ReconnectAttempts++
	m.snap.ConnectionLost = true
	return m.snap.ReconnectAttempts
}

// failConnectivity ends the subscription after the reconnection policy is
// exhausted. The message is distinct from backend-reported failures.
func (m *machine) failConnectivity(attempts int) {
	if m.terminal() {
		return
	}
	m.snap.Status = StatusFailed
	m.snap.Failure = FailureConnectivity
	m.snap.FailureMessage = fmt.Sprintf("Unable to reach the workflow stream after %d attempts", attempts)
	m.snap.Notice = ""
}
