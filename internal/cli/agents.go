package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/agents"
	"github.com/raphaelgruber/chorus/internal/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the specialist roster",
	Long: `List the specialists consulted for every message.

Locally the roster comes from CHORUS_AGENTS_FILE, or the built-in default.
With --remote it is read from the server.`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	var (
		roster  []models.AgentDefinition
		persona string
	)

	if remoteURL != "" {
		b, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer b.close()
		card, err := b.remote.ServiceCard(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch service card: %w", err)
		}
		roster, persona = card.Agents, card.Persona
	} else {
		// Reading the roster needs no providers, so skip building the pipeline.
		cfg, _, cleanup, err := loadConfig()
		if err != nil {
			return err
		}
		defer cleanup()
		roster, err = agents.Load(cfg.AgentsFile)
		if err != nil {
			return err
		}
		persona = cfg.PersonaName
	}

	p := newPrinter(cmd.OutOrStdout())
	if jsonOut {
		return p.json(roster)
	}
	p.agents(persona, roster)
	return nil
}
