package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/config"
	"github.com/syndelabs/synde/internal/workflow"
)

func TestSampleConfigYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := WriteConfigFile(t, dir, SampleConfigYAML("http://localhost:9999", dir))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999", cfg.Server.URL)
	assert.Equal(t, 10, cfg.Stream.BaseDelayMS)
	assert.Equal(t, 3, cfg.Stream.MaxReconnectAttempts)
	assert.False(t, cfg.Notify.Bell)
	assert.Equal(t, dir, cfg.StateDir)
}

func TestSampleSnapshot(t *testing.T) {
	t.Parallel()

	complete := SampleSnapshot(workflow.StatusComplete)
	AssertSnapshotComplete(t, complete)
	assert.Equal(t, SamplePDB, complete.Result.PDBData)

	failed := SampleSnapshot(workflow.StatusFailed)
	AssertSnapshotFailed(t, failed, workflow.FailureBackend)

	running := SampleSnapshot(workflow.StatusRunning)
	AssertSnapshotStatus(t, running, workflow.StatusRunning)
	assert.False(t, running.Status.Terminal())
}
