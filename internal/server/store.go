package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/stream"
)

// changeNotifier wakes streams waiting on a workflow checkpoint.
type changeNotifier struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

func (n *changeNotifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *changeNotifier) register(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.waiters = append(n.waiters, ch)
}

func (n *changeNotifier) unregister(ch chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, w := range n.waiters {
		if w == ch {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			break
		}
	}
}

// conversationRecord is one chat thread with its message history.
type conversationRecord struct {
	conv     api.Conversation
	messages []api.Message
}

// workflowRecord is the mutable checkpoint for one mock workflow run.
// Streams read it through workflowView copies; the runner and handlers
// mutate it through memoryStore methods so every change notifies waiters.
type workflowRecord struct {
	id             string
	conversationID string
	messageID      string
	prompt         string

	status      string
	currentNode string
	nodeHistory []string
	logs        []api.LogEntry
	errorCount  int
	lastError   string
	result      *stream.CompletePayload

	createdAt time.Time
	updatedAt time.Time

	// dropsLeft is how many times the stream endpoint should cut the
	// connection mid-flight before letting the workflow finish.
	dropsLeft int

	notifier *changeNotifier
}

// workflowView is a read-only copy of a workflowRecord, safe to use after
// the store lock is released.
type workflowView struct {
	ID             string
	ConversationID string
	MessageID      string
	Prompt         string
	Status         string
	CurrentNode    string
	NodeHistory    []string
	LogCount       int
	ErrorCount     int
	LastError      string
	Result         *stream.CompletePayload
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (v workflowView) terminal() bool {
	switch v.Status {
	case statusComplete, statusFailed, statusTimedOut:
		return true
	}
	return false
}

// Workflow statuses tracked by the mock checkpoint.
const (
	statusPending  = "pending"
	statusRunning  = "running"
	statusComplete = "complete"
	statusFailed   = "failed"
	statusTimedOut = "timed_out"
)

// memoryStore holds every conversation, message, and workflow checkpoint for
// the lifetime of the process. All access goes through its methods.
type memoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversationRecord
	workflows     map[string]*workflowRecord
	clock         func() time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: make(map[string]*conversationRecord),
		workflows:     make(map[string]*workflowRecord),
		clock:         time.Now,
	}
}

func (s *memoryStore) createConversation(title string) api.Conversation {
	if title == "" {
		title = "New Conversation"
	}
	now := s.clock()
	conv := api.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = &conversationRecord{conv: conv}
	s.mu.Unlock()
	return conv
}

// listConversations returns all conversations, most recently updated first.
func (s *memoryStore) listConversations() []api.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.Conversation, 0, len(s.conversations))
	for _, rec := range s.conversations {
		out = append(out, rec.conv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// getConversation returns the conversation with its message history.
func (s *memoryStore) getConversation(id string) (api.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.conversations[id]
	if !ok {
		return api.Conversation{}, false
	}
	conv := rec.conv
	conv.Messages = append([]api.Message(nil), rec.messages...)
	return conv, true
}

func (s *memoryStore) hasConversation(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok
}

func (s *memoryStore) appendMessage(conversationID string, msg api.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[conversationID]
	if !ok {
		return false
	}
	rec.messages = append(rec.messages, msg)
	rec.conv.UpdatedAt = s.clock()
	return true
}

// setMessageResult records the assistant message's final content and status
// once its workflow ends.
func (s *memoryStore) setMessageResult(conversationID, messageID, content, workflowStatus string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[conversationID]
	if !ok {
		return
	}
	for i := range rec.messages {
		if rec.messages[i].ID == messageID {
			if content != "" {
				rec.messages[i].Content = content
			}
			rec.messages[i].WorkflowStatus = workflowStatus
			rec.conv.UpdatedAt = s.clock()
			return
		}
	}
}

// createWorkflow registers a new checkpoint in the pending state.
func (s *memoryStore) createWorkflow(conversationID, messageID, prompt string, drops int) *workflowRecord {
	now := s.clock()
	rec := &workflowRecord{
		id:             uuid.NewString(),
		conversationID: conversationID,
		messageID:      messageID,
		prompt:         prompt,
		status:         statusPending,
		createdAt:      now,
		updatedAt:      now,
		dropsLeft:      drops,
		notifier:       &changeNotifier{},
	}

	s.mu.Lock()
	s.workflows[rec.id] = rec
	s.mu.Unlock()
	return rec
}

func (s *memoryStore) workflowView(id string) (workflowView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.workflows[id]
	if !ok {
		return workflowView{}, false
	}
	return workflowView{
		ID:             rec.id,
		ConversationID: rec.conversationID,
		MessageID:      rec.messageID,
		Prompt:         rec.prompt,
		Status:         rec.status,
		CurrentNode:    rec.currentNode,
		NodeHistory:    append([]string(nil), rec.nodeHistory...),
		LogCount:       len(rec.logs),
		ErrorCount:     rec.errorCount,
		LastError:      rec.lastError,
		Result:         rec.result,
		CreatedAt:      rec.createdAt,
		UpdatedAt:      rec.updatedAt,
	}, true
}

// mutateWorkflow applies fn under the store lock, stamps updatedAt, and
// wakes every stream waiting on the workflow.
func (s *memoryStore) mutateWorkflow(id string, fn func(*workflowRecord)) bool {
	s.mu.Lock()
	rec, ok := s.workflows[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	fn(rec)
	rec.updatedAt = s.clock()
	notifier := rec.notifier
	s.mu.Unlock()

	notifier.notify()
	return true
}

// appendLog adds one live log line to the workflow checkpoint.
func (s *memoryStore) appendLog(id, msg string) {
	ts := s.clock().UTC().Format(time.RFC3339)
	s.mutateWorkflow(id, func(rec *workflowRecord) {
		rec.logs = append(rec.logs, api.LogEntry{Ts: ts, Msg: msg})
	})
}

// logsSince returns log entries from index since onward plus the next index.
func (s *memoryStore) logsSince(id string, since int) ([]api.LogEntry, int, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.workflows[id]
	if !ok {
		return nil, since, "", false
	}
	if since < 0 {
		since = 0
	}
	if since > len(rec.logs) {
		since = len(rec.logs)
	}
	logs := append([]api.LogEntry(nil), rec.logs[since:]...)
	return logs, since + len(logs), rec.status, true
}

// takeDrop consumes one scheduled connection drop, reporting whether the
// stream should cut now.
func (s *memoryStore) takeDrop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.workflows[id]
	if !ok || rec.dropsLeft <= 0 {
		return false
	}
	rec.dropsLeft--
	return true
}

// watch registers a waiter channel on the workflow. The returned cancel
// removes it. ok is false when the workflow does not exist.
func (s *memoryStore) watch(id string) (<-chan struct{}, func(), bool) {
	s.mu.RLock()
	rec, ok := s.workflows[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}

	ch := make(chan struct{}, 1)
	rec.notifier.register(ch)
	return ch, func() { rec.notifier.unregister(ch) }, true
}
