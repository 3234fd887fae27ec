// Package api is the REST client for the synde server: message sending,
// conversation management, suggestion browsing, and workflow status and log
// polling. The live event stream is internal/stream; this package covers
// everything request/response shaped.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/syndelabs/synde/internal/logging"
)

// defaultTimeout bounds every request. Streaming is not done through this
// client, so a timeout is always safe here.
const defaultTimeout = 30 * time.Second

// RequestError is a non-2xx response from the server.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a server response with status 404.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

// Client talks to the synde REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAuthToken sets the bearer token sent with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// NewClient creates a REST client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.Component("api"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SendMessage posts a user message to a conversation. The server answers
// with the created messages and the workflow ID computing the reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*SendResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is empty")
	}

	path := fmt.Sprintf("/api/conversations/%s/messages/", conversationID)
	body := map[string]string{"content": content}

	var result SendResult
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &result, nil
}

// CreateConversation starts a new conversation.
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	body := map[string]string{"title": title}

	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations/", body, &conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// ListConversations returns all conversations, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var result struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/conversations/", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return result.Conversations, nil
}

// GetConversation returns one conversation with its messages.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	path := fmt.Sprintf("/api/conversations/%s/", conversationID)

	var conv Conversation
	if err := c.do(ctx, http.MethodGet, path, nil, &conv); err != nil {
		return nil, fmt.Errorf("failed to get conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

// Suggestions returns the canned prompts the server offers.
func (c *Client) Suggestions(ctx context.Context) ([]Suggestion, error) {
	var result struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/suggestions/", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}
	return result.Suggestions, nil
}

// WorkflowStatus returns a one-shot status snapshot for a workflow.
func (c *Client) WorkflowStatus(ctx context.Context, workflowID string) (*WorkflowStatus, error) {
	path := fmt.Sprintf("/api/workflow/%s/status/", workflowID)

	var status WorkflowStatus
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get workflow status: %w", err)
	}
	return &status, nil
}

// WorkflowLogs returns workflow log lines starting at index since.
func (c *Client) WorkflowLogs(ctx context.Context, workflowID string, since int) (*LogPage, error) {
	path := fmt.Sprintf("/api/workflow/%s/logs/?since=%s", workflowID, url.QueryEscape(fmt.Sprint(since)))

	var page LogPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to get workflow logs: %w", err)
	}
	return &page, nil
}

// do executes one JSON request. Non-2xx responses become a *RequestError
// carrying the server's error message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	c.logger.Debug("request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RequestError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls {"error": "..."} out of an error body, falling back to
// the raw text.
func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
