package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/syndelabs/synde/internal/logging"
)

// Defaults applied by NewServer when the config leaves a field zero.
const (
	DefaultAddr              = ":8642"
	DefaultStepDelay         = 400 * time.Millisecond
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultMaxStreamDuration = 5 * time.Minute
)

// Config holds mock backend options.
type Config struct {
	// Addr is the listen address. Use ":0" to pick a free port.
	Addr string

	// AuthToken, when set, requires Bearer authentication on every /api
	// route. Empty disables auth.
	AuthToken string

	// StepDelay is how long the mock runner spends in each workflow node.
	StepDelay time.Duration

	// HeartbeatInterval is how often an idle stream sends a heartbeat.
	HeartbeatInterval time.Duration

	// MaxStreamDuration is the stream age at which an unfinished workflow
	// stream emits timeout and closes.
	MaxStreamDuration time.Duration

	Logger *logging.Logger
}

// Server is the in-memory mock backend. It implements the chat REST API
// and the workflow SSE endpoint against scripted workflow runs, so clients
// can be developed and tested without the real service.
type Server struct {
	addr      string
	authToken string

	stepDelay         time.Duration
	heartbeatInterval time.Duration
	maxStreamAge      time.Duration

	store   *memoryStore
	limiter *authLimiter
	logger  *logging.Logger

	mu       sync.Mutex
	started  bool
	server   *http.Server
	listener net.Listener

	runCtx    context.Context
	runCancel context.CancelFunc
	runners   sync.WaitGroup
}

// NewServer creates a mock backend. A nil config uses all defaults.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.StepDelay < 0 || cfg.HeartbeatInterval < 0 || cfg.MaxStreamDuration < 0 {
		return nil, errors.New("durations must not be negative")
	}

	s := &Server{
		addr:              cfg.Addr,
		authToken:         cfg.AuthToken,
		stepDelay:         cfg.StepDelay,
		heartbeatInterval: cfg.HeartbeatInterval,
		maxStreamAge:      cfg.MaxStreamDuration,
		store:             newMemoryStore(),
		logger:            cfg.Logger,
	}
	if s.addr == "" {
		s.addr = DefaultAddr
	}
	if s.stepDelay == 0 {
		s.stepDelay = DefaultStepDelay
	}
	if s.heartbeatInterval == 0 {
		s.heartbeatInterval = DefaultHeartbeatInterval
	}
	if s.maxStreamAge == 0 {
		s.maxStreamAge = DefaultMaxStreamDuration
	}
	if s.logger == nil {
		s.logger = logging.Component("server")
	}
	if s.authToken != "" {
		s.limiter = newAuthLimiter(s.logger)
	}
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	return s, nil
}

// Start starts the HTTP server and blocks until it stops. Cancelling ctx
// halts the mock workflow runners; use Stop for a full shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Handler: mux,
		// No write timeout: SSE responses stay open for the stream's
		// whole lifetime.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.runCancel()
		case <-s.runCtx.Done():
		}
	}()

	s.logger.Info("mock backend listening", "addr", listener.Addr().String())

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server and waits for running mock
// workflows to exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.server == nil {
		s.mu.Unlock()
		return nil
	}
	server := s.server
	s.started = false
	s.mu.Unlock()

	s.runCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.runners.Wait()
	return nil
}

// ListenAddr returns the actual address the server is listening on, which
// matters when Addr was ":0". Empty until Start.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the server's base URL, suitable for client configuration.
func (s *Server) URL() string {
	addr := s.ListenAddr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/conversations/", s.withAuth(s.handleConversationRoutes))
	mux.HandleFunc("/api/suggestions/", s.withAuth(s.handleSuggestions))
	mux.HandleFunc("/api/workflow/", s.withAuth(s.handleWorkflowRoutes))
}

// withAuth enforces Bearer authentication when a token is configured,
// throttling clients that keep failing it.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	if s.authToken == "" {
		return handler
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if res := s.limiter.check(ip); !res.allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.retryAfter)))
			respondError(w, http.StatusTooManyRequests, res.reason)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.limiter.recordFailure(ip)
			respondError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			s.limiter.recordFailure(ip)
			respondError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}
		token := strings.TrimPrefix(authHeader, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.limiter.recordFailure(ip)
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		s.limiter.recordSuccess(ip)
		handler(w, r)
	}
}

// startRunner launches the scripted run for one workflow.
func (s *Server) startRunner(workflowID string) {
	r := &runner{
		store:     s.store,
		stepDelay: s.stepDelay,
		logger:    s.logger,
	}
	s.runners.Add(1)
	go func() {
		defer s.runners.Done()
		r.run(s.runCtx, workflowID)
	}()
}
