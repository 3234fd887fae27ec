package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/server"
)

// Backend is an in-process mock backend running for one test.
type Backend struct {
	Server *server.Server

	// URL is the backend's base URL, ready for client configuration.
	URL string
}

// BackendOption adjusts the mock backend configuration.
type BackendOption func(*server.Config)

// WithStepDelay sets the per-node delay of scripted workflow runs.
func WithStepDelay(d time.Duration) BackendOption {
	return func(cfg *server.Config) {
		cfg.StepDelay = d
	}
}

// WithAuthToken requires Bearer authentication on API routes.
func WithAuthToken(token string) BackendOption {
	return func(cfg *server.Config) {
		cfg.AuthToken = token
	}
}

// WithHeartbeatInterval sets the idle-stream heartbeat interval.
func WithHeartbeatInterval(d time.Duration) BackendOption {
	return func(cfg *server.Config) {
		cfg.HeartbeatInterval = d
	}
}

// WithMaxStreamDuration sets the stream age cutoff.
func WithMaxStreamDuration(d time.Duration) BackendOption {
	return func(cfg *server.Config) {
		cfg.MaxStreamDuration = d
	}
}

// SilentLogger returns a logger that discards everything.
func SilentLogger() *logging.Logger {
	logger := logging.New()
	logger.SetOutput(log.New(io.Discard, "", 0))
	return logger
}

// StartMockBackend boots a mock backend on a free port with fast scripted
// workflows and registers its shutdown with t.Cleanup. The returned URL is
// live by the time this returns.
func StartMockBackend(t *testing.T, opts ...BackendOption) *Backend {
	t.Helper()

	cfg := &server.Config{
		Addr:      "127.0.0.1:0",
		StepDelay: 2 * time.Millisecond,
		Logger:    SilentLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		require.NoError(t, <-errCh, "mock backend exited with error")
	})

	WaitFor(t, 5*time.Second, func() bool {
		return srv.ListenAddr() != ""
	}, "mock backend did not start listening")

	return &Backend{Server: srv, URL: srv.URL()}
}
