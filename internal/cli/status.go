package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show a one-shot workflow status snapshot",
	Long: `Status fetches the server's current view of a workflow without opening
the event stream: lifecycle state, the node being executed, the nodes
already run, and error details when it failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	client := newAPIClient(cfg)
	st, err := client.WorkflowStatus(cmdContext(cmd), args[0])
	if err != nil {
		return err
	}

	styles := tui.NewStyles(os.Stdout)

	printField("Workflow", st.WorkflowID)
	printField("Status", styles.FormatStatus(st.Status))
	if st.CurrentNode != "" {
		printField("Node", st.CurrentNode)
	}
	if len(st.NodeHistory) > 0 {
		printField("History", strings.Join(st.NodeHistory, ", "))
	}
	if !st.UpdatedAt.IsZero() {
		printField("Updated", formatTime(st.UpdatedAt))
	}
	if st.ErrorCount > 0 {
		printField("Errors", fmt.Sprintf("%d", st.ErrorCount))
	}
	if st.LastError != "" {
		printField("Last error", st.LastError)
	}
	if summary := resultSummary(st.Result); summary != "" {
		printField("Result", summary)
	}
	return nil
}

// resultSummary condenses a result payload to one line.
func resultSummary(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var payload struct {
		Content       string `json:"content"`
		StructureData *struct {
			PDBData string `json:"pdb_data"`
		} `json:"structure_data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "attached"
	}

	parts := []string{}
	if payload.Content != "" {
		parts = append(parts, tui.Truncate(strings.SplitN(payload.Content, "\n", 2)[0], 60))
	}
	if payload.StructureData != nil && payload.StructureData.PDBData != "" {
		parts = append(parts, fmt.Sprintf("structure %d bytes", len(payload.StructureData.PDBData)))
	}
	if len(parts) == 0 {
		return "attached"
	}
	return strings.Join(parts, " + ")
}

func printField(label, value string) {
	fmt.Printf("  %-12s %s\n", label+":", value)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
