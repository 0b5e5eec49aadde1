// Package cli provides the command-line interface for chorus.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/app"
	"github.com/raphaelgruber/chorus/internal/client"
	"github.com/raphaelgruber/chorus/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	remoteURL string
	userID    string
	jsonOut   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chorus",
	Short: "Multi-specialist chat with a single persona voice",
	Long: `Chorus answers each message by consulting a roster of specialist models in
parallel, merging their views with a judge model and rewriting the result in
one persona's voice. Exchanges are remembered per user and recalled as context.

Commands run the pipeline in-process unless --remote points at a running
chorus server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "chorus server URL (default: run in-process)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultUser(), "user id memories are stored under")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(statsCmd)
}

func defaultUser() string {
	if u := os.Getenv("CHORUS_USER"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

// loadConfig reads configuration and builds the logger. Unless --verbose is
// set, only warnings reach stderr so they do not interleave with answers.
func loadConfig() (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	levels := config.LogLevels{Stderr: cfg.LogLevel, File: cfg.LogLevel}
	if !verbose && levels.Stderr < slog.LevelWarn {
		levels.Stderr = slog.LevelWarn
	}
	logger, cleanup := config.SetupLoggerLevels(cfg.LogFile, levels)
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}

// backend abstracts over the in-process pipeline and a remote server.
type backend struct {
	app    *app.App
	remote *client.Client
	close  func()
}

// openBackend connects to --remote when set, otherwise builds the pipeline.
func openBackend(ctx context.Context) (*backend, error) {
	if remoteURL != "" {
		return &backend{remote: client.New(remoteURL), close: func() {}}, nil
	}

	cfg, logger, cleanup, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = cleanup()
		return nil, err
	}
	return &backend{
		app: a,
		close: func() {
			if err := a.Close(); err != nil {
				logger.Warn("failed to close pipeline", "error", err)
			}
			_ = cleanup()
		},
	}, nil
}
