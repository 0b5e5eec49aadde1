package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime metrics of a running server",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	if remoteURL == "" {
		return errors.New("stats needs --remote: metrics live in the server process")
	}
	b, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.close()

	snap, err := b.remote.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}
	return newPrinter(cmd.OutOrStdout()).json(snap)
}
