package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/workflow"
)

var (
	sendConversation  string
	sendSaveStructure string
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and follow its workflow to the end",
	Long: `Send posts a single message, follows the workflow computing the reply
until it reaches a terminal state, and exits 0 when it completed, 1 when
it failed, and 2 when the backend timed it out. Without --conversation a
fresh conversation is created.

Example:
  synde send "predict the structure of this protein"
  synde send --save-structure model.pdb "fold MKTAYIAKQR"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendConversation, "conversation", "", "Send into an existing conversation")
	sendCmd.Flags().StringVar(&sendSaveStructure, "save-structure", "", "Write the result's PDB payload to this file")
	sendCmd.Flags().BoolVar(&notifySuccessFlag, "notify-success", false, "Also notify on successful completion")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	client := newAPIClient(cfg)
	reg := newRegistry(cfg)
	defer reg.CloseAll()

	store, err := openStateStore(cfg)
	if err != nil {
		return err
	}

	conversationID := sendConversation
	if conversationID == "" {
		conv, err := client.CreateConversation(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to start conversation: %w", err)
		}
		conversationID = conv.ID
	}

	content := strings.Join(args, " ")
	result, err := client.SendMessage(ctx, conversationID, content)
	if err != nil {
		return err
	}

	sub, err := reg.Subscribe(ctx, conversationID, result.WorkflowID)
	if err != nil {
		return err
	}

	snap, detached := followWorkflow(reg, sub, result.AssistantMessage, store, content)
	if detached {
		return nil
	}

	if sendSaveStructure != "" && snap.Status == workflow.StatusComplete {
		if err := saveStructure(snap, sendSaveStructure); err != nil {
			return err
		}
	}

	return exitForStatus(snap.Status)
}
