package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/syndelabs/synde/internal/stream"
)

// streamTimeoutMessage is the payload sent when a stream ages out before
// its workflow finishes.
const streamTimeoutMessage = "Workflow stream timed out"

// writeSSE writes one named event in the wire format the stream client
// parses: an event line, a data line, a blank separator, then a flush.
func writeSSE(w io.Writer, flusher http.Flusher, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// handleStream serves one workflow's progress as Server-Sent Events.
//
// The stream sends connected immediately, then node, status, and logs
// events as the checkpoint advances, a heartbeat while nothing changes,
// and ends with a terminal complete, error, or timeout event. Streams
// older than the configured maximum emit timeout and close even if the
// workflow is still running.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, conversationID, workflowID string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.store.hasConversation(conversationID) {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	view, ok := s.store.workflowView(workflowID)
	if !ok || view.ConversationID != conversationID {
		// Unknown workflows still answer in-protocol so the client fails
		// the subscription instead of retrying a dead endpoint.
		writeSSE(w, flusher, stream.EventError, stream.ErrorPayload{Error: "Workflow not found"})
		return
	}

	changed, unwatch, ok := s.store.watch(workflowID)
	if !ok {
		writeSSE(w, flusher, stream.EventError, stream.ErrorPayload{Error: "Workflow not found"})
		return
	}
	defer unwatch()

	if err := writeSSE(w, flusher, stream.EventConnected, stream.ConnectedPayload{
		WorkflowID:  workflowID,
		Status:      view.Status,
		CurrentNode: view.CurrentNode,
	}); err != nil {
		return
	}

	s.logger.Debug("stream opened", "workflow_id", workflowID, "conversation_id", conversationID)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()
	deadline := time.NewTimer(s.maxStreamAge)
	defer deadline.Stop()

	var (
		lastNode   string
		lastStatus string
		logIndex   int
		poll       int
		progressed bool
	)

	for {
		view, ok = s.store.workflowView(workflowID)
		if !ok {
			return
		}

		if view.CurrentNode != "" && view.CurrentNode != lastNode {
			lastNode = view.CurrentNode
			if err := writeSSE(w, flusher, stream.EventNode, stream.NodePayload{
				Node:   view.CurrentNode,
				Status: view.Status,
			}); err != nil {
				return
			}
			progressed = true
		}

		if view.Status != lastStatus {
			lastStatus = view.Status
			if err := writeSSE(w, flusher, stream.EventStatus, stream.StatusPayload{
				Status:      view.Status,
				CurrentNode: view.CurrentNode,
			}); err != nil {
				return
			}
			progressed = true
		}

		if view.LogCount > logIndex {
			entries, next, _, ok := s.store.logsSince(workflowID, logIndex)
			if ok && len(entries) > 0 {
				lines := make([]stream.LogLine, len(entries))
				for i, e := range entries {
					lines[i] = stream.LogLine{Ts: e.Ts, Msg: e.Msg}
				}
				if err := writeSSE(w, flusher, stream.EventLogs, stream.LogsPayload{Logs: lines}); err != nil {
					return
				}
				logIndex = next
				progressed = true
			}
		}

		if view.terminal() {
			s.writeTerminal(w, flusher, view)
			s.logger.Debug("stream finished", "workflow_id", workflowID, "status", view.Status)
			return
		}

		// Flaky workflows get their stream cut after at least one progress
		// event, so reconnecting clients see a mid-flight drop rather than
		// a refused connection.
		if progressed && s.store.takeDrop(workflowID) {
			s.logger.Debug("cutting stream", "workflow_id", workflowID)
			return
		}

		select {
		case <-r.Context().Done():
			s.logger.Debug("stream client went away", "workflow_id", workflowID)
			return
		case <-s.runCtx.Done():
			// Shutdown: open streams end so graceful Stop is not held
			// hostage by idle clients.
			s.logger.Debug("stream closed by shutdown", "workflow_id", workflowID)
			return
		case <-changed:
		case <-heartbeat.C:
			poll++
			if err := writeSSE(w, flusher, stream.EventHeartbeat, stream.HeartbeatPayload{
				Poll:   poll,
				Status: view.Status,
			}); err != nil {
				return
			}
		case <-deadline.C:
			writeSSE(w, flusher, stream.EventTimeout, stream.TimeoutPayload{Message: streamTimeoutMessage})
			s.logger.Debug("stream aged out", "workflow_id", workflowID)
			return
		}
	}
}

// writeTerminal emits the terminal event matching the workflow's final
// status.
func (s *Server) writeTerminal(w io.Writer, flusher http.Flusher, view workflowView) {
	switch view.Status {
	case statusComplete:
		payload := view.Result
		if payload == nil {
			payload = &stream.CompletePayload{}
		}
		writeSSE(w, flusher, stream.EventComplete, payload)
	case statusFailed:
		writeSSE(w, flusher, stream.EventError, stream.ErrorPayload{
			Error:       view.LastError,
			Recoverable: false,
		})
	case statusTimedOut:
		writeSSE(w, flusher, stream.EventTimeout, stream.TimeoutPayload{Message: streamTimeoutMessage})
	}
}
