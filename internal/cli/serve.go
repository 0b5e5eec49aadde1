package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chorus/internal/app"
	"github.com/raphaelgruber/chorus/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	Long: `Run the chorus server until interrupted.

Endpoints:
  POST /chat            {"message", "user_id"}
  POST /memory/search   {"query", "user_id", "limit"}
  GET  /ws              one chat frame in, one result frame out
  GET  /, /health, /stats`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default CHORUS_PORT or 8484)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if remoteURL != "" {
		return errors.New("serve runs the pipeline locally; drop --remote")
	}
	// Server logs are the output here, so keep the configured level.
	verbose = true
	cfg, logger, cleanup, err := loadConfig()
	if err != nil {
		return err
	}
	defer cleanup()
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.New(buildCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close pipeline", "error", err)
		}
	}()

	srv := server.New(a.Chat, a.Metrics, logger)
	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
