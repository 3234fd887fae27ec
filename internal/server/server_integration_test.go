//go:build integration

package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/stream"
)

// startServer runs Start on a free port and waits until it is listening.
func startServer(t *testing.T, cfg *Config) *Server {
	t.Helper()

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Addr = "127.0.0.1:0"
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	if cfg.StepDelay == 0 {
		cfg.StepDelay = 5 * time.Millisecond
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Start never returned after Stop")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for srv.ListenAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never started listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)

	assert.NotEmpty(t, srv.ListenAddr())
	assert.Contains(t, srv.URL(), "http://127.0.0.1:")

	resp, err := http.Get(srv.URL() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A second Start on the same instance is refused.
	assert.Error(t, srv.Start(context.Background()))
}

func TestServerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)
	require.NoError(t, srv.Stop())
	assert.NoError(t, srv.Stop())
}

func TestServerRoundTrip(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)
	base := srv.URL()

	conv := createTestConversation(t, base, "integration")
	res := sendTestMessage(t, base, conv.ID, "predict the structure of my protein")

	client := stream.NewClient(base)
	conn, err := client.Open(context.Background(), conv.ID, res.WorkflowID)
	require.NoError(t, err)
	defer conn.Close()

	var complete *stream.CompletePayload
	deadline := time.After(10 * time.Second)
	for complete == nil {
		select {
		case ev, ok := <-conn.Events():
			require.True(t, ok, "stream closed before completion")
			if ev.Name == stream.EventComplete {
				payload, err := ev.Complete()
				require.NoError(t, err)
				complete = payload
			}
		case <-deadline:
			t.Fatal("workflow never completed")
		}
	}

	assert.NotEmpty(t, complete.Content)
	require.NotNil(t, complete.StructureData)
	assert.NotEmpty(t, complete.StructureData.PDBData)

	st := waitForWorkflowStatus(t, base, res.WorkflowID, statusComplete)
	assert.Contains(t, st.NodeHistory, "run_esmfold")
}

func TestServerAuthRoundTrip(t *testing.T) {
	t.Parallel()

	srv := startServer(t, &Config{AuthToken: "integration-token"})
	base := srv.URL()

	resp, err := http.Get(base + "/api/suggestions/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/suggestions/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer integration-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
