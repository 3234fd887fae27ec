package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/state"
	"github.com/syndelabs/synde/internal/workflow"
)

var chatConversation string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively with live workflow progress",
	Long: `Chat opens a prompt loop: each message is sent to the server, and the
workflow computing the reply is followed live until it finishes. Ctrl-C
during a workflow detaches from it without stopping it; "exit" or an
empty Ctrl-D leaves the chat.

Example:
  synde chat
  synde chat --conversation 4f8b2c1e`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "Continue an existing conversation")
	chatCmd.Flags().BoolVar(&notifySuccessFlag, "notify-success", false, "Also notify on successful completion")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	conversationID := chatConversation
	if conversationID == "" {
		conv, err := client.CreateConversation(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to start conversation: %w", err)
		}
		conversationID = conv.ID
	}
	fmt.Printf("Conversation %s (exit to leave)\n", conversationID)

	printSuggestionSample(client.Suggestions(ctx))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if prompt == "exit" || prompt == "quit" {
			break
		}

		if err := chatTurn(cmd, client, reg, store, conversationID, prompt); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Println()
	}
	return scanner.Err()
}

// chatTurn sends one prompt and follows the workflow answering it.
func chatTurn(cmd *cobra.Command, client *api.Client, reg *workflow.Registry, store *state.Store, conversationID, prompt string) error {
	ctx := cmdContext(cmd)

	result, err := client.SendMessage(ctx, conversationID, prompt)
	if err != nil {
		return err
	}

	sub, err := reg.Subscribe(ctx, conversationID, result.WorkflowID)
	if err != nil {
		return err
	}

	followWorkflow(reg, sub, result.AssistantMessage, store, prompt)
	return nil
}

// printSuggestionSample shows a few canned prompts before the first input.
// Suggestion fetch failures are not worth interrupting the chat for.
func printSuggestionSample(suggestions []api.Suggestion, err error) {
	if err != nil || len(suggestions) == 0 {
		return
	}

	fmt.Println("Try asking:")
	shown := suggestions
	if len(shown) > 4 {
		shown = shown[:4]
	}
	for _, s := range shown {
		fmt.Printf("  %s %s\n", s.Icon, s.Prompt)
	}
	fmt.Println()
}
