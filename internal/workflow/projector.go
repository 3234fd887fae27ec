package workflow

import (
	"fmt"

	"github.com/syndelabs/synde/internal/api"
)

// RenderModel is everything a surface needs to draw one workflow-linked
// assistant message. Exactly one of TerminalContent and TerminalError is
// set once the workflow ends; a completed workflow never carries an error
// affordance.
type RenderModel struct {
	// HeaderText is the one-line status banner.
	HeaderText string

	// DetailText is the current stage or, between connections, the
	// reconnection notice.
	DetailText string

	// LogLines is the full log tail, oldest first.
	LogLines []string

	// TerminalContent is the final answer once the workflow completes.
	TerminalContent string

	// TerminalError is the labeled failure text for failed and timed out
	// workflows. The label distinguishes backend errors, backend timeouts,
	// and exhausted connectivity.
	TerminalError string

	// ResponseHTML is the optional rendered prediction summary.
	ResponseHTML string

	// PDBData is the optional structural model payload.
	PDBData string

	// Notice is a transient recoverable-error message, if one stands.
	Notice string
}

// Project maps a chat message and a subscription snapshot to a render
// model. It is pure: same inputs, same model, no mutation of either input
// and no protocol side effects. Surfaces call it on every snapshot.
func Project(msg *api.Message, snap Snapshot) RenderModel {
	model := RenderModel{
		HeaderText: headerText(snap.Status),
		DetailText: detailText(snap),
		Notice:     snap.Notice,
	}
	if len(snap.LogTail) > 0 {
		model.LogLines = append([]string(nil), snap.LogTail...)
	}

	switch snap.Status {
	case StatusComplete:
		if snap.Result != nil {
			model.TerminalContent = snap.Result.Content
			model.ResponseHTML = snap.Result.ResponseHTML
			model.PDBData = snap.Result.PDBData
		}
		if model.TerminalContent == "" && msg != nil {
			model.TerminalContent = msg.Content
		}
	case StatusFailed, StatusTimedOut:
		model.TerminalError = terminalError(snap)
	}

	return model
}

func headerText(status Status) string {
	switch status {
	case StatusPending:
		return "Workflow queued"
	case StatusRunning:
		return "Workflow running"
	case StatusComplete:
		return "Workflow complete"
	case StatusFailed:
		return "Workflow failed"
	case StatusTimedOut:
		return "Workflow timed out"
	default:
		return string(status)
	}
}

func detailText(snap Snapshot) string {
	if snap.Status.Terminal() {
		return ""
	}
	if snap.ConnectionLost {
		return fmt.Sprintf("Connection lost, retrying (attempt %d)", snap.ReconnectAttempts)
	}
	switch snap.Status {
	case StatusPending:
		return "Waiting for the workflow to start"
	case StatusRunning:
		if snap.StageLabel != "" {
			return snap.StageLabel
		}
		return "Working"
	}
	return ""
}

func terminalError(snap Snapshot) string {
	switch snap.Failure {
	case FailureBackend:
		return "Error: " + snap.FailureMessage
	case FailureTimeout:
		return "Timed out: " + snap.FailureMessage
	case FailureConnectivity:
		return "Connection lost: " + snap.FailureMessage
	default:
		// Machine-produced terminal snapshots always carry a reason
		return "Error: " + snap.FailureMessage
	}
}
