package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/models"
)

var recallLimit int

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search remembered exchanges",
	Long: `Search the exchanges remembered for --user, nearest first.

Examples:
  chorus recall "tomatoes" --user alice
  chorus recall "contract audit" -n 10 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecall,
}

func init() {
	recallCmd.Flags().IntVarP(&recallLimit, "limit", "n", 5, "max memories")
}

func runRecall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	var hits []models.MemoryHit
	if b.remote != nil {
		hits, err = b.remote.SearchMemory(ctx, args[0], userID, recallLimit)
	} else {
		hits, err = b.app.Chat.SearchMemory(ctx, args[0], userID, recallLimit)
	}
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if jsonOut {
		if hits == nil {
			hits = []models.MemoryHit{}
		}
		return p.json(hits)
	}
	p.memories(hits)
	return nil
}
