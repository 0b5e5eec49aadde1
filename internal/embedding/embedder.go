// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/chorus/internal/config"
)

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Must match the memory store's index dimension.
	Dimension() int
}

// ErrDimensionMismatch is returned when a provider answers with a vector of the wrong size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// New creates the Embedder named by cfg.EmbedProvider, wrapped in a cache
// when cfg.EmbedCacheEntries is positive. It returns nil, nil for the "none" provider.
func New(cfg config.Config, logger *slog.Logger) (Embedder, error) {
	var (
		e   Embedder
		err error
	)

	switch cfg.EmbedProvider {
	case config.ProviderNone:
		return nil, nil
	case config.ProviderOllama, config.ProviderOpenAI:
		e, err = NewLangchainEmbedder(cfg, logger)
	case config.ProviderVoyage:
		e, err = NewVoyageClient(cfg.VoyageAPIKey, cfg.EmbedModel, cfg.EmbedDimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbedProvider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EmbedCacheEntries > 0 {
		return NewCachedEmbedder(e, cfg.EmbedCacheEntries)
	}
	return e, nil
}

func checkDimension(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
	}
	return nil
}
