package api

import (
	"encoding/json"
	"time"
)

// Message is one chat message as the server returns it.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// WorkflowID links an assistant message to the workflow computing its
	// content, until that workflow completes.
	WorkflowID string `json:"workflow_id,omitempty"`

	// WorkflowStatus is the workflow status as last reported by the
	// server. The live status comes from the stream, not from here.
	WorkflowStatus string `json:"workflow_status,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Messages is populated when fetching a single conversation.
	Messages []Message `json:"messages,omitempty"`
}

// SendResult is the server's response to a message send. WorkflowID seeds
// the stream subscription that follows the assistant's answer.
type SendResult struct {
	UserMessage      *Message `json:"user_message,omitempty"`
	AssistantMessage *Message `json:"assistant_message"`
	WorkflowID       string   `json:"workflow_id"`
}

// Suggestion is one canned prompt the server offers for an empty chat.
type Suggestion struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Prompt   string `json:"prompt"`
	Icon     string `json:"icon"`
}

// WorkflowStatus is the one-shot status snapshot for polling clients.
type WorkflowStatus struct {
	WorkflowID  string          `json:"workflow_id"`
	Status      string          `json:"status"`
	CurrentNode string          `json:"current_node,omitempty"`
	NodeHistory []string        `json:"node_history,omitempty"`
	ErrorCount  int             `json:"error_count,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// LogEntry is one workflow log line.
type LogEntry struct {
	Ts  string `json:"ts,omitempty"`
	Msg string `json:"msg"`
}

// LogPage is one page of workflow logs. NextIndex is the since value for
// the next fetch.
type LogPage struct {
	Logs      []LogEntry `json:"logs"`
	NextIndex int        `json:"next_index"`
	Status    string     `json:"status"`
}
