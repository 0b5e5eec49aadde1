package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation",
	Long: `Start an interactive conversation. Each line is one message; type "exit"
or press Ctrl+D to leave. With --remote the conversation runs over one
WebSocket connection.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	var send func(msg string) (*models.ChatResult, error)
	persona := ""
	if b.remote != nil {
		session, err := b.remote.Dial(ctx)
		if err != nil {
			return err
		}
		defer session.Close()
		send = func(msg string) (*models.ChatResult, error) {
			return session.Send(ctx, msg, userID)
		}
	} else {
		persona = b.app.Chat.PersonaName()
		send = func(msg string) (*models.ChatResult, error) {
			r := b.app.Chat.HandleChat(ctx, msg, userID)
			return &r, nil
		}
	}

	p := newPrinter(cmd.OutOrStdout())
	interactive := isTerminal(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			fmt.Fprint(p.w, p.render(p.theme.hintStyle(), "you> "))
		}
		if !scanner.Scan() {
			break
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}
		if msg == "exit" || msg == "quit" {
			break
		}

		result, err := send(msg)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		if jsonOut {
			if err := p.json(result); err != nil {
				return err
			}
			continue
		}
		p.result(persona, result, verbose)
		fmt.Fprintln(p.w)
	}
	return scanner.Err()
}
