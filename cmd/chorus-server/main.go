// Package main provides the chorus HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/raphaelgruber/chorus/internal/app"
	"github.com/raphaelgruber/chorus/internal/config"
	"github.com/raphaelgruber/chorus/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	logger.Info("starting chorus-server", "port", cfg.Port, "log_file", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build all dependencies
	buildCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	a, err := app.New(buildCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close pipeline", "error", err)
		}
	}()

	srv := server.New(a.Chat, a.Metrics, logger)
	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
