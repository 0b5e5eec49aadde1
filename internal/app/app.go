// Package app wires configuration into a ready ChatService.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/chorus/internal/agents"
	"github.com/raphaelgruber/chorus/internal/classify"
	"github.com/raphaelgruber/chorus/internal/config"
	"github.com/raphaelgruber/chorus/internal/embedding"
	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/memory"
	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/service"
)

// App holds the long-lived dependencies shared by the CLI and the server.
type App struct {
	Chat    *service.ChatService
	Metrics *metrics.Collector
	Config  config.Config

	embedder embedding.Embedder
}

// New builds every pipeline component from cfg. Optional components whose
// provider is "none" are left out and the pipeline degrades around them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	roster, err := agents.Load(cfg.AgentsFile)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}

	gen, err := llm.NewClient(cfg, mc, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	embedder, err := embedding.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	sentiment, emotion, err := classify.New(cfg, gen, logger)
	if err != nil {
		return nil, fmt.Errorf("create classifiers: %w", err)
	}

	// Without embeddings there is nothing to index, so the store stays closed.
	var store memory.Store
	if embedder != nil {
		store, err = memory.Open(ctx, cfg, embedder.Dimension(), logger)
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
	}
	mem := memory.NewAdapter(store, memory.AdapterConfig{
		Timeout:     cfg.MemoryTimeout,
		MaxDistance: cfg.MemoryMaxDistance,
	}, mc, logger)

	analyzer := service.NewAnalyzer(sentiment, emotion, embedder, mem, service.AnalyzerConfig{
		TopK:            cfg.MemoryTopK,
		ClassifyTimeout: cfg.ClassifyTimeout,
		EmbedTimeout:    cfg.EmbedTimeout,
	}, mc, logger)

	chat := service.NewChatService(service.Components{
		Analyzer:     analyzer,
		Orchestrator: service.NewOrchestrator(roster, gen, cfg.SpecialistTimeout, logger),
		Synthesizer:  service.NewSynthesizer(gen, cfg.JudgeModel, cfg.JudgeTimeout, logger),
		Persona:      service.NewPersonaTransformer(gen, cfg.PersonaModel, cfg.PersonaName, cfg.PersonaTimeout, logger),
		Memory:       mem,
		Embedder:     embedder,
		EmbedTimeout: cfg.EmbedTimeout,
		TopK:         cfg.MemoryTopK,
		Metrics:      mc,
		Logger:       logger,
	})

	logger.Info("pipeline ready",
		"agents", len(roster),
		"llm_provider", cfg.LLMProvider,
		"embed_provider", cfg.EmbedProvider,
		"classifier", cfg.ClassifierProvider,
		"memory_backend", cfg.MemoryBackend,
		"memory_available", mem.Available(),
	)

	return &App{Chat: chat, Metrics: mc, Config: cfg, embedder: embedder}, nil
}

// Close waits for pending memory writes, releases the store and stops the
// embedding cache.
func (a *App) Close() error {
	err := a.Chat.Close()
	if c, ok := a.embedder.(interface{ Close() }); ok {
		c.Close()
	}
	return err
}
