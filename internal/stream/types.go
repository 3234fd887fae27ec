package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event names emitted by the workflow stream endpoint.
const (
	// EventConnected is sent once when the stream is established.
	EventConnected = "connected"
	// EventNode reports the workflow advancing to a named stage.
	EventNode = "node"
	// EventStatus is a generic stage/detail update.
	EventStatus = "status"
	// EventLogs carries appended live log lines.
	EventLogs = "logs"
	// EventComplete is the terminal success event with the final payload.
	EventComplete = "complete"
	// EventError reports a backend error, recoverable or fatal.
	EventError = "error"
	// EventTimeout is the backend-declared terminal timeout.
	EventTimeout = "timeout"
	// EventHeartbeat is a keep-alive, ignored by the state machine.
	EventHeartbeat = "heartbeat"
)

// Event is one named server-sent event with its raw JSON payload.
// Payloads stay unparsed until a typed accessor is called so that unknown
// or malformed events can be skipped without stalling the stream.
type Event struct {
	// Name is the SSE event name (one of the Event* constants).
	Name string

	// Data is the JSON payload exactly as the server sent it.
	Data json.RawMessage

	// At is the client receipt time, used only for diagnostics.
	At time.Time
}

// NewEvent creates an Event with the payload marshaled to JSON.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}
	return Event{Name: name, Data: data, At: time.Now()}, nil
}

// MustNewEvent creates an Event, panicking on error.
// Use only when the payload is known to be serializable.
func MustNewEvent(name string, payload any) Event {
	ev, err := NewEvent(name, payload)
	if err != nil {
		panic(err)
	}
	return ev
}

// ConnectedPayload carries optional session info sent when the stream opens.
type ConnectedPayload struct {
	WorkflowID  string `json:"workflow_id,omitempty"`
	Status      string `json:"status,omitempty"`
	CurrentNode string `json:"current_node,omitempty"`
}

// NodePayload reports the workflow advancing to a named stage.
type NodePayload struct {
	Node   string `json:"node"`
	Status string `json:"status,omitempty"`
}

// StatusPayload is a generic stage/detail update. Status strings here are
// informational only; terminal transitions are driven by complete, error,
// and timeout events.
type StatusPayload struct {
	Status      string `json:"status,omitempty"`
	CurrentNode string `json:"current_node,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// LogLine is one live log entry.
type LogLine struct {
	Ts  string `json:"ts,omitempty"`
	Msg string `json:"msg"`
}

// LogsPayload carries one or more appended log lines in delivery order.
type LogsPayload struct {
	Logs []LogLine `json:"logs"`
}

// PredictionData is the rendered prediction result attached to a completed
// workflow.
type PredictionData struct {
	ResponseHTML string `json:"response_html,omitempty"`
}

// StructureData is the structural model attached to a completed workflow.
type StructureData struct {
	PDBData string `json:"pdb_data,omitempty"`
}

// CompletePayload is the terminal success payload.
type CompletePayload struct {
	Content        string          `json:"content,omitempty"`
	PredictionData *PredictionData `json:"prediction_data,omitempty"`
	StructureData  *StructureData  `json:"structure_data,omitempty"`
	GenerationData json.RawMessage `json:"generation_data,omitempty"`
}

// ErrorPayload reports a backend error. Recoverable errors are informational
// and leave the stream open; non-recoverable errors end the workflow.
type ErrorPayload struct {
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

// TimeoutPayload is the backend-declared timeout.
type TimeoutPayload struct {
	Message string `json:"message,omitempty"`
}

// HeartbeatPayload is a keep-alive marker.
type HeartbeatPayload struct {
	Poll   int    `json:"poll,omitempty"`
	Status string `json:"status,omitempty"`
}

// Connected returns the payload of a connected event.
func (e *Event) Connected() (*ConnectedPayload, error) {
	if e.Name != EventConnected {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventConnected)
	}
	var p ConnectedPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Node returns the payload of a node event.
func (e *Event) Node() (*NodePayload, error) {
	if e.Name != EventNode {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventNode)
	}
	var p NodePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Status returns the payload of a status event.
func (e *Event) Status() (*StatusPayload, error) {
	if e.Name != EventStatus {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventStatus)
	}
	var p StatusPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Logs returns the payload of a logs event.
func (e *Event) Logs() (*LogsPayload, error) {
	if e.Name != EventLogs {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventLogs)
	}
	var p LogsPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Complete returns the payload of a complete event.
func (e *Event) Complete() (*CompletePayload, error) {
	if e.Name != EventComplete {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventComplete)
	}
	var p CompletePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ErrorInfo returns the payload of an error event.
func (e *Event) ErrorInfo() (*ErrorPayload, error) {
	if e.Name != EventError {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventError)
	}
	var p ErrorPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Timeout returns the payload of a timeout event.
func (e *Event) Timeout() (*TimeoutPayload, error) {
	if e.Name != EventTimeout {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventTimeout)
	}
	var p TimeoutPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Heartbeat returns the payload of a heartbeat event.
func (e *Event) Heartbeat() (*HeartbeatPayload, error) {
	if e.Name != EventHeartbeat {
		return nil, fmt.Errorf("event is %s, not %s", e.Name, EventHeartbeat)
	}
	var p HeartbeatPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// decode unmarshals the event payload. An empty payload decodes to the zero
// value; the protocol allows events with no data.
func (e *Event) decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Name, err)
	}
	return nil
}
