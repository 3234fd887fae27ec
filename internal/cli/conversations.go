package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var conversationsNew string

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List or create conversations",
	Long: `Conversations lists the chat threads on the server, newest first.
--new creates a fresh conversation with the given title and prints its
ID for use with chat and send.

Example:
  synde conversations
  synde conversations --new "thermostability screen"`,
	Args: cobra.NoArgs,
	RunE: runConversations,
}

func init() {
	conversationsCmd.Flags().StringVar(&conversationsNew, "new", "", "Create a conversation with this title")
	rootCmd.AddCommand(conversationsCmd)
}

func runConversations(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	client := newAPIClient(cfg)

	if conversationsNew != "" {
		conv, err := client.CreateConversation(ctx, conversationsNew)
		if err != nil {
			return err
		}
		fmt.Printf("Created conversation %s\n", conv.ID)
		return nil
	}

	conversations, err := client.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	idWidth := len("ID")
	titleWidth := len("TITLE")
	for _, c := range conversations {
		if len(c.ID) > idWidth {
			idWidth = len(c.ID)
		}
		if len(c.Title) > titleWidth {
			titleWidth = len(c.Title)
		}
	}

	fmt.Printf("%-*s  %-*s  %s\n", idWidth, "ID", titleWidth, "TITLE", "UPDATED")
	fmt.Printf("%s  %s  %s\n", strings.Repeat("-", idWidth), strings.Repeat("-", titleWidth), "-------")
	for _, c := range conversations {
		fmt.Printf("%-*s  %-*s  %s\n", idWidth, c.ID, titleWidth, c.Title, formatTime(c.UpdatedAt))
	}
	return nil
}
