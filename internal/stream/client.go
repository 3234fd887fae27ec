// Package stream implements the client side of the synde workflow event
// stream: a server-sent events transport that delivers named protocol events
// in exactly the order the server emitted them.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/syndelabs/synde/internal/logging"
)

// eventBuffer is the per-connection event channel capacity. The channel is
// FIFO, so buffering never reorders delivery.
const eventBuffer = 32

// ConnectionError reports a failure to establish the stream connection.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Client opens server-sent event streams against the synde workflow API.
type Client struct {
	// baseURL is the base URL of the synde server (e.g. "http://localhost:8642")
	baseURL string

	// httpClient is the HTTP client used for stream requests
	httpClient *http.Client

	// authToken is the optional bearer token
	authToken string

	logger *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAuthToken sets the bearer token sent with stream requests.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client. Streaming requests need a client
// without a request timeout.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new stream Client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for streaming connections
		},
		logger: logging.Component("stream"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the stream URL for a conversation/workflow pair.
func (c *Client) Endpoint(conversationID, workflowID string) string {
	return fmt.Sprintf("%s/api/conversations/%s/stream/%s/", c.baseURL, conversationID, workflowID)
}

// Open establishes the event stream for one workflow. It returns once the
// server has accepted the request; events then arrive on the Conn in server
// order. The caller owns the Conn and must Close it.
func (c *Client) Open(ctx context.Context, conversationID, workflowID string) (Conn, error) {
	endpoint := c.Endpoint(conversationID, workflowID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ConnectionError{
			Endpoint: endpoint,
			Err:      fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	c.logger.Debug("stream established", "workflow", workflowID, "conversation", conversationID)

	conn := newConn(resp.Body)
	go conn.readLoop()
	return conn, nil
}

// Conn is one live event stream connection. Events arrive on Events in
// exactly server order; the channel closes when the connection ends, after
// which Err reports the read error, if any. Close is idempotent and discards
// events still in flight.
type Conn interface {
	Events() <-chan Event
	Err() error
	Close() error
}

type conn struct {
	body      io.ReadCloser
	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func newConn(body io.ReadCloser) *conn {
	return &conn{
		body:   body,
		events: make(chan Event, eventBuffer),
		closed: make(chan struct{}),
	}
}

// Events returns the ordered event channel.
func (c *conn) Events() <-chan Event {
	return c.events
}

// Err returns the error that ended the connection, or nil after a clean EOF
// or a local Close. Whether a clean EOF was expected is the state machine's
// judgement, not the transport's.
func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the connection. Safe to call more than once.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.body.Close()
	})
	return nil
}

// readLoop parses the SSE body and delivers events until the stream ends or
// the conn is closed.
func (c *conn) readLoop() {
	defer close(c.events)

	scanner := bufio.NewScanner(c.body)
	// Increase buffer for potentially large events (PDB payloads)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-c.closed:
			return
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if name != "" || len(dataLines) > 0 {
				ev := Event{
					Name: name,
					Data: json.RawMessage(strings.Join(dataLines, "\n")),
					At:   time.Now(),
				}
				if ev.Name == "" {
					// SSE default event name
					ev.Name = "message"
				}

				select {
				case <-c.closed:
					return
				case c.events <- ev:
				}
			}
			name = ""
			dataLines = nil
			continue
		}

		// Comment lines keep proxies from buffering; skip them
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			name = value
		case "data":
			dataLines = append(dataLines, value)
		}
		// id: and retry: are not used by this protocol
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-c.closed:
			// Read error is a side effect of the local Close
		default:
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
		}
	}
}

// splitField splits an SSE "field: value" line, trimming the single optional
// space after the colon.
func splitField(line string) (field, value string) {
	idx := strings.Index(line, ":")
	if idx == -1 {
		return line, ""
	}
	return line[:idx], strings.TrimPrefix(line[idx+1:], " ")
}
