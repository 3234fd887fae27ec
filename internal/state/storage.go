// Package state persists the workflows this process is watching so a later
// invocation can pick them back up with resume.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syndelabs/synde/internal/workflow"
)

// Session records one watched workflow in sessions.yaml.
type Session struct {
	WorkflowID     string          `yaml:"workflow_id"`
	ConversationID string          `yaml:"conversation_id"`
	Status         workflow.Status `yaml:"status"`
	Prompt         string          `yaml:"prompt,omitempty"`
	StartedAt      time.Time       `yaml:"started_at"`
	UpdatedAt      time.Time       `yaml:"updated_at"`
}

type sessionsFile struct {
	Sessions []Session `yaml:"sessions"`
}

// Store reads and writes sessions.yaml under the state directory.
// It is safe for concurrent use within a single process; concurrent CLI
// processes last-write-win, which is acceptable for a resume hint.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path() string {
	return filepath.Join(s.dir, "sessions.yaml")
}

// load reads sessions.yaml. Callers must hold s.mu.
func (s *Store) load() ([]Session, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	var file sessionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sessions file: %w", err)
	}
	return file.Sessions, nil
}

// write replaces sessions.yaml. Callers must hold s.mu.
func (s *Store) write(sessions []Session) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(sessionsFile{Sessions: sessions})
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	if err := os.WriteFile(s.path(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write sessions file: %w", err)
	}
	return nil
}

// Upsert inserts or updates the entry for session.WorkflowID. Entries that
// have reached a terminal status are pruned in the same write, so recording a
// finished workflow removes it from the file.
func (s *Store) Upsert(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range sessions {
		if sessions[i].WorkflowID == session.WorkflowID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}

	kept := sessions[:0]
	for _, entry := range sessions {
		if !entry.Status.Terminal() {
			kept = append(kept, entry)
		}
	}

	return s.write(kept)
}

// Remove drops the entry for workflowID. Removing an unknown workflow is not
// an error.
func (s *Store) Remove(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return err
	}

	kept := sessions[:0]
	for _, entry := range sessions {
		if entry.WorkflowID != workflowID {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(sessions) {
		return nil
	}

	return s.write(kept)
}

// Get returns the entry for workflowID.
func (s *Store) Get(workflowID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range sessions {
		if sessions[i].WorkflowID == workflowID {
			session := sessions[i]
			return &session, nil
		}
	}
	return nil, fmt.Errorf("session not found: %s", workflowID)
}

// Active returns the non-terminal entries ordered by start time, oldest
// first. These are the workflows resume should pick back up.
func (s *Store) Active() ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.load()
	if err != nil {
		return nil, err
	}

	var active []Session
	for _, entry := range sessions {
		if !entry.Status.Terminal() {
			active = append(active, entry)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].StartedAt.Equal(active[j].StartedAt) {
			return active[i].StartedAt.Before(active[j].StartedAt)
		}
		return active[i].WorkflowID < active[j].WorkflowID
	})
	return active, nil
}
