package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/state"
	"github.com/syndelabs/synde/internal/testutil"
)

func TestSendCommand_CompletesWorkflow(t *testing.T) {
	setupCLITest(t)

	var err error
	out := captureOutput(func() {
		err = runSend(sendCmd, []string{"predict", "the", "structure", "of", "this", "protein"})
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Workflow queued")
	assert.Contains(t, out, "Workflow running")
	assert.Contains(t, out, "Workflow complete")
	assert.Contains(t, out, "🔄 Starting: intent_router")
	assert.Contains(t, out, "✅ Completed: run_esmfold")
	assert.Contains(t, out, "Predicted the 3D structure with ESMFold.")
	assert.Contains(t, out, "Structure model attached (")
}

func TestSendCommand_SaveStructure(t *testing.T) {
	setupCLITest(t)

	path := filepath.Join(t.TempDir(), "model.pdb")
	sendSaveStructure = path

	var err error
	out := captureOutput(func() {
		err = runSend(sendCmd, []string{"fold this sequence"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Structure written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ATOM")
}

func TestSendCommand_FailedWorkflowExitCode(t *testing.T) {
	setupCLITest(t)

	var err error
	out := captureOutput(func() {
		err = runSend(sendCmd, []string{"fail:", "the", "GPU", "worker", "crashed"})
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)

	assert.Contains(t, out, "Workflow failed")
	assert.Contains(t, out, "Error: the GPU worker crashed")
}

func TestSendCommand_TimedOutWorkflowExitCode(t *testing.T) {
	setupCLITest(t,
		testutil.WithMaxStreamDuration(250*time.Millisecond),
		testutil.WithHeartbeatInterval(50*time.Millisecond),
	)

	var err error
	out := captureOutput(func() {
		err = runSend(sendCmd, []string{"timeout:", "park", "this", "workflow"})
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	assert.Contains(t, out, "Workflow timed out")
	assert.Contains(t, out, "Timed out: Workflow stream timed out")
}

func TestSendCommand_ExistingConversation(t *testing.T) {
	backend, _ := setupCLITest(t)

	client := api.NewClient(backend.URL)
	conv, err := client.CreateConversation(context.Background(), "thermostability screen")
	require.NoError(t, err)
	sendConversation = conv.ID

	captureOutput(func() {
		err = runSend(sendCmd, []string{"how does thermostability work"})
	})
	require.NoError(t, err)

	got, err := client.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, api.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "how does thermostability work", got.Messages[0].Content)
	assert.Equal(t, api.RoleAssistant, got.Messages[1].Role)
}

func TestSendCommand_UnknownConversation(t *testing.T) {
	setupCLITest(t)
	sendConversation = "no-such-conversation"

	var err error
	captureOutput(func() {
		err = runSend(sendCmd, []string{"hello"})
	})

	var reqErr *api.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 404, reqErr.StatusCode)
}

func TestSendCommand_PrunesSessionOnCompletion(t *testing.T) {
	_, stateDir := setupCLITest(t)

	var err error
	captureOutput(func() {
		err = runSend(sendCmd, []string{"what is an enzyme"})
	})
	require.NoError(t, err)

	active, err := state.NewStore(stateDir).Active()
	require.NoError(t, err)
	assert.Empty(t, active, "finished workflows must not linger in the session state")
}
