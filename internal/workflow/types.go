// Package workflow contains the realtime synchronization core: the lifecycle
// state machine driven by stream events, the reconnection policy with its
// retry timer, the per-workflow subscription runner, the registry that owns
// live subscriptions, and the pure projector that turns snapshots into render
// models.
package workflow

import "time"

// Status is the lifecycle state of a workflow subscription. Transitions move
// forward only: pending, running, then exactly one terminal status.
type Status string

const (
	// StatusPending is the initial state, before any event arrives.
	StatusPending Status = "pending"

	// StatusRunning means the workflow has reported progress.
	StatusRunning Status = "running"

	// StatusComplete is the terminal success state.
	StatusComplete Status = "complete"

	// StatusFailed is the terminal failure state, whether the backend
	// reported a fatal error or connectivity was exhausted.
	StatusFailed Status = "failed"

	// StatusTimedOut is the terminal state for a backend-declared timeout.
	StatusTimedOut Status = "timed_out"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// FailureReason distinguishes why a subscription ended in a non-complete
// terminal state. The three failure classes carry different user-visible
// messages so the surface can tell "the server gave up" apart from "we lost
// the network".
type FailureReason int

const (
	// FailureNone means the subscription has not failed.
	FailureNone FailureReason = iota

	// FailureBackend is a fatal error reported by the workflow engine.
	FailureBackend

	// FailureTimeout is a timeout declared by the workflow engine.
	FailureTimeout

	// FailureConnectivity means reconnection attempts were exhausted.
	FailureConnectivity
)

func (r FailureReason) String() string {
	switch r {
	case FailureBackend:
		return "backend error"
	case FailureTimeout:
		return "backend timeout"
	case FailureConnectivity:
		return "connection lost"
	default:
		return "none"
	}
}

// Result is the final payload of a completed workflow.
type Result struct {
	// Content is the assistant's final markdown answer.
	Content string

	// ResponseHTML is an optional rendered prediction summary.
	ResponseHTML string

	// PDBData is an optional structural model in PDB format.
	PDBData string
}

// Snapshot is an immutable copy of one subscription's state, published on
// every accepted event. Consumers may hold a Snapshot indefinitely; nothing
// in it is shared with the live subscription.
type Snapshot struct {
	WorkflowID     string
	ConversationID string

	// Status moves monotonically forward; see Status.
	Status Status

	// StageLabel is the human-readable current phase, last write wins.
	// Node-derived labels take precedence over the log-line fallback.
	StageLabel string

	// LogTail holds every log line received, in arrival order.
	LogTail []string

	// ReconnectAttempts counts consecutive unexpected closes. It resets to
	// zero when the server acknowledges a connection.
	ReconnectAttempts int

	// LastEventAt is the arrival time of the most recently accepted event.
	// Diagnostics only; protocol correctness never depends on it.
	LastEventAt time.Time

	// ConnectionLost is set while the subscription is between connections
	// and cleared by the next connected event.
	ConnectionLost bool

	// Notice is the most recent recoverable-error message, cleared on the
	// next connected event. Informational only.
	Notice string

	// Failure and FailureMessage describe a non-complete terminal state.
	Failure        FailureReason
	FailureMessage string

	// Result is set once Status is StatusComplete.
	Result *Result
}
