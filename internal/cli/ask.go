package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/models"
)

var askDetails bool

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message through the pipeline",
	Long: `Send one message through the specialist pipeline and print the persona's answer.

The exchange is remembered for the user given with --user.

Examples:
  chorus ask "How do I secure a smart contract?"
  chorus ask "Should I water the tomatoes today?" --user alice --details
  chorus ask "hello" --remote http://localhost:8484 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askDetails, "details", "d", false, "print diagnostics after the answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	var (
		result  *models.ChatResult
		persona string
	)
	if b.remote != nil {
		result, err = b.remote.Chat(ctx, args[0], userID)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
	} else {
		r := b.app.Chat.HandleChat(ctx, args[0], userID)
		result = &r
		persona = b.app.Chat.PersonaName()
	}

	p := newPrinter(cmd.OutOrStdout())
	if jsonOut {
		return p.json(result)
	}
	p.result(persona, result, askDetails)
	return nil
}
