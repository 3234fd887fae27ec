package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/workflow"
)

var (
	logsSince    int
	logsFollow   bool
	logsInterval time.Duration
)

var logsCmd = &cobra.Command{
	Use:   "logs <workflow-id>",
	Short: "Fetch workflow log lines",
	Long: `Logs fetches a workflow's log lines through the REST API, outside the
event stream. --since skips lines already seen; --follow keeps polling
for new lines until the workflow reaches a terminal state.

Example:
  synde logs 4f8b2c1e
  synde logs 4f8b2c1e --since 12
  synde logs 4f8b2c1e --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVar(&logsSince, "since", 0, "Start at this log index")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Poll for new lines until the workflow finishes")
	logsCmd.Flags().DurationVar(&logsInterval, "interval", 2*time.Second, "Poll interval for --follow")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	client := newAPIClient(cfg)
	workflowID := args[0]

	page, err := client.WorkflowLogs(ctx, workflowID, logsSince)
	if err != nil {
		return err
	}
	printLogEntries(page.Logs)

	if !logsFollow {
		return nil
	}
	return followLogs(ctx, client, workflowID, page)
}

// followLogs polls for fresh lines until the workflow goes terminal or the
// user interrupts.
func followLogs(ctx context.Context, client *api.Client, workflowID string, page *api.LogPage) error {
	if workflow.Status(page.Status).Terminal() {
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(logsInterval)
	defer ticker.Stop()

	next := page.NextIndex
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			return nil
		case <-ticker.C:
			page, err := client.WorkflowLogs(ctx, workflowID, next)
			if err != nil {
				return err
			}
			printLogEntries(page.Logs)
			next = page.NextIndex

			if workflow.Status(page.Status).Terminal() {
				return nil
			}
		}
	}
}

func printLogEntries(entries []api.LogEntry) {
	for _, entry := range entries {
		if entry.Ts != "" {
			fmt.Printf("%s  %s\n", entry.Ts, entry.Msg)
		} else {
			fmt.Println(entry.Msg)
		}
	}
}
