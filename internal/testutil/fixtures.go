package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/workflow"
)

// SamplePDB is a tiny but well-formed PDB payload for structure fixtures.
const SamplePDB = `HEADER    TEST STRUCTURE
ATOM      1  N   MET A   1      27.340  24.430   2.614  1.00  9.67           N
ATOM      2  CA  MET A   1      26.266  25.413   2.842  1.00 10.38           C
ATOM      3  C   MET A   1      26.913  26.639   3.531  1.00  9.62           C
TER       4      MET A   1
END
`

// SampleConfigYAML renders a config.yaml pointing at the given server with
// fast reconnects, a local state dir, and notifications off.
func SampleConfigYAML(serverURL, stateDir string) string {
	return fmt.Sprintf(`server:
  url: %s
stream:
  base_delay_ms: 10
  max_reconnect_attempts: 3
notify:
  bell: false
log_level: error
state_dir: %s
`, serverURL, stateDir)
}

// WriteConfigFile writes content as dir/config.yaml and returns the path.
func WriteConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// SampleSnapshot returns a populated snapshot in the given status. Terminal
// failure statuses carry a backend failure reason; complete carries a
// result.
func SampleSnapshot(status workflow.Status) workflow.Snapshot {
	snap := workflow.Snapshot{
		WorkflowID:     "wf-test-1",
		ConversationID: "conv-test-1",
		Status:         status,
		StageLabel:     "Predicting structure",
		LogTail:        []string{"🔄 Starting: run_esmfold"},
		LastEventAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	switch status {
	case workflow.StatusComplete:
		snap.StageLabel = ""
		snap.Result = &workflow.Result{Content: "All done.", PDBData: SamplePDB}
	case workflow.StatusFailed:
		snap.StageLabel = ""
		snap.Failure = workflow.FailureBackend
		snap.FailureMessage = "Workflow execution failed"
	case workflow.StatusTimedOut:
		snap.StageLabel = ""
		snap.Failure = workflow.FailureTimeout
		snap.FailureMessage = "Workflow stream timed out"
	}
	return snap
}
