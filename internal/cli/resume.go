package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/workflow"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Re-subscribe to every locally recorded in-flight workflow",
	Long: `Resume reads the local session state and re-subscribes to each workflow
still recorded as pending or running, for example after the terminal was
closed mid-run. All streams open immediately; the workflows are rendered
one after another. Finished workflows are pruned from the state as their
terminal status comes in, and workflows the server no longer knows are
dropped.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().BoolVar(&notifySuccessFlag, "notify-success", false, "Also notify on successful completion")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return err
	}

	sessions, err := store.Active()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No workflows to resume.")
		return nil
	}

	ctx := cmdContext(cmd)
	client := newAPIClient(cfg)
	reg := newRegistry(cfg)
	defer reg.CloseAll()

	// Open every stream first so no workflow waits for the ones rendered
	// before it. A recorded workflow the server answers 404 for is stale,
	// for example after a backend restart; prune it instead of burning
	// reconnect attempts on it. Any other status error is left to the
	// stream's own retry policy.
	subs := make([]*workflow.Subscription, 0, len(sessions))
	stale := 0
	for _, sess := range sessions {
		if _, err := client.WorkflowStatus(ctx, sess.WorkflowID); api.IsNotFound(err) {
			fmt.Printf("Dropping %s: no longer known to the server\n", sess.WorkflowID)
			if err := store.Remove(sess.WorkflowID); err != nil {
				logging.Warn("failed to prune stale session", "workflow", sess.WorkflowID, "error", err)
			}
			stale++
			continue
		}

		sub, err := reg.Resume(ctx, sess.ConversationID, sess.WorkflowID)
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", sess.WorkflowID, err)
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		if stale == len(sessions) {
			fmt.Println("No workflows to resume.")
			return nil
		}
		return fmt.Errorf("no workflow could be resumed")
	}

	fmt.Printf("Resuming %d workflow(s)\n", len(subs))
	for _, sub := range subs {
		fmt.Println()
		if sess, err := store.Get(sub.WorkflowID()); err == nil && sess.Prompt != "" {
			fmt.Printf("> %s\n", sess.Prompt)
		} else {
			fmt.Printf("Workflow %s\n", sub.WorkflowID())
		}

		if _, detached := followWorkflow(reg, sub, nil, store, ""); detached {
			return nil
		}
	}
	return nil
}
