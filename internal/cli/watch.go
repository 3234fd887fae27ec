package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/api"
)

var watchConversation string

var watchCmd = &cobra.Command{
	Use:   "watch <workflow-id>",
	Short: "Attach to a running workflow's event stream",
	Long: `Watch subscribes to an existing workflow and follows it live until it
finishes. The conversation is taken from --conversation, falling back to
the local session state for workflows this client started.

Example:
  synde watch 4f8b2c1e --conversation 9d3a71b0`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchConversation, "conversation", "", "Conversation owning the workflow")
	watchCmd.Flags().BoolVar(&notifySuccessFlag, "notify-success", false, "Also notify on successful completion")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	workflowID := args[0]

	store, err := openStateStore(cfg)
	if err != nil {
		return err
	}

	conversationID := watchConversation
	if conversationID == "" {
		if sess, err := store.Get(workflowID); err == nil {
			conversationID = sess.ConversationID
		}
	}
	if conversationID == "" {
		return fmt.Errorf("workflow %s is not in the local session state; pass --conversation", workflowID)
	}

	ctx := cmdContext(cmd)

	// An unknown conversation would otherwise surface as reconnect
	// exhaustion; check once and fail with the real reason.
	client := newAPIClient(cfg)
	if _, err := client.GetConversation(ctx, conversationID); api.IsNotFound(err) {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	reg := newRegistry(cfg)
	defer reg.CloseAll()

	sub, err := reg.Subscribe(ctx, conversationID, workflowID)
	if err != nil {
		return err
	}

	followWorkflow(reg, sub, nil, store, "")
	return nil
}
