package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/syndelabs/synde/internal/api"
)

// errorResponse is the JSON error envelope clients unwrap.
type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, errorResponse{Error: message})
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// handleConversationRoutes dispatches everything under /api/conversations/:
//
//	GET  /api/conversations/                      list
//	POST /api/conversations/                      create
//	GET  /api/conversations/{id}/                 detail with messages
//	POST /api/conversations/{id}/messages/        send, starts a workflow
//	GET  /api/conversations/{id}/stream/{wf}/     SSE progress stream
func (s *Server) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) == 2:
		s.handleConversations(w, r)
	case len(parts) == 3:
		s.handleGetConversation(w, r, parts[2])
	case len(parts) == 4 && parts[3] == "messages":
		s.handleSendMessage(w, r, parts[2])
	case len(parts) == 5 && parts[3] == "stream":
		s.handleStream(w, r, parts[2], parts[4])
	default:
		respondError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, map[string]any{
			"conversations": s.store.listConversations(),
		})
	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		// An empty or absent body makes an untitled conversation.
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&req)
		}
		conv := s.store.createConversation(strings.TrimSpace(req.Title))
		s.logger.Debug("conversation created", "conversation_id", conv.ID, "title", conv.Title)
		respondJSON(w, http.StatusCreated, conv)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	conv, ok := s.store.getConversation(id)
	if !ok {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// handleSendMessage records the user message, creates the assistant
// placeholder with a fresh workflow ID, and starts the mock runner.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.store.hasConversation(conversationID) {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(w, http.StatusBadRequest, "Message content required")
		return
	}

	now := time.Now()
	userMsg := api.Message{
		ID:        uuid.NewString(),
		Role:      api.RoleUser,
		Content:   content,
		CreatedAt: now,
	}
	if !s.store.appendMessage(conversationID, userMsg) {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	drops := 0
	if scenario, _ := splitScenario(content); scenario == scenarioFlaky {
		drops = flakyDrops
	}

	assistantID := uuid.NewString()
	wf := s.store.createWorkflow(conversationID, assistantID, content, drops)

	assistant := api.Message{
		ID:             assistantID,
		Role:           api.RoleAssistant,
		WorkflowID:     wf.id,
		WorkflowStatus: statusPending,
		CreatedAt:      now,
	}
	s.store.appendMessage(conversationID, assistant)
	s.startRunner(wf.id)

	s.logger.Info("message accepted",
		"conversation_id", conversationID,
		"workflow_id", wf.id)

	respondJSON(w, http.StatusOK, api.SendResult{
		UserMessage:      &userMsg,
		AssistantMessage: &assistant,
		WorkflowID:       wf.id,
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestionCatalog(),
	})
}

// handleWorkflowRoutes dispatches /api/workflow/{id}/status/ and
// /api/workflow/{id}/logs/.
func (s *Server) handleWorkflowRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path)
	if len(parts) != 4 {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	switch parts[3] {
	case "status":
		s.handleWorkflowStatus(w, r, parts[2])
	case "logs":
		s.handleWorkflowLogs(w, r, parts[2])
	default:
		respondError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	view, ok := s.store.workflowView(id)
	if !ok {
		respondError(w, http.StatusNotFound, "workflow not found")
		return
	}

	status := api.WorkflowStatus{
		WorkflowID:  view.ID,
		Status:      view.Status,
		CurrentNode: view.CurrentNode,
		NodeHistory: view.NodeHistory,
		ErrorCount:  view.ErrorCount,
		LastError:   view.LastError,
		CreatedAt:   view.CreatedAt,
		UpdatedAt:   view.UpdatedAt,
	}
	if view.Result != nil {
		if raw, err := json.Marshal(view.Result); err == nil {
			status.Result = raw
		}
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleWorkflowLogs(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = n
	}

	logs, next, status, ok := s.store.logsSince(id, since)
	if !ok {
		respondError(w, http.StatusNotFound, "workflow not found")
		return
	}
	respondJSON(w, http.StatusOK, api.LogPage{
		Logs:      logs,
		NextIndex: next,
		Status:    status,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
