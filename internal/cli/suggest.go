package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "List suggested prompts",
	Long: `Suggest lists the canned prompts the server offers, grouped by
category. They cover the workflow types the assistant can run, from
structure prediction to stability analysis.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	client := newAPIClient(cfg)
	suggestions, err := client.Suggestions(cmdContext(cmd))
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Println("No suggestions available.")
		return nil
	}

	lastCategory := ""
	for _, s := range suggestions {
		if s.Category != lastCategory {
			if lastCategory != "" {
				fmt.Println()
			}
			fmt.Printf("%s\n", s.Category)
			lastCategory = s.Category
		}
		fmt.Printf("  %s %s\n", s.Icon, s.Label)
		fmt.Printf("     %s\n", s.Prompt)
	}
	return nil
}
