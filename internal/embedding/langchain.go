package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/chorus/internal/config"
)

// LangchainEmbedder wraps a langchaingo embedder with dimension validation.
type LangchainEmbedder struct {
	model     embeddings.Embedder
	dimension int
	modelName string
	logger    *slog.Logger
}

var _ Embedder = (*LangchainEmbedder)(nil)

// NewLangchainEmbedder creates an Ollama or OpenAI embedder from configuration.
func NewLangchainEmbedder(cfg config.Config, logger *slog.Logger) (*LangchainEmbedder, error) {
	var model embeddings.Embedder

	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}

	return newLangchainEmbedder(model, cfg.EmbedModel, cfg.EmbedDimension, logger), nil
}

func newLangchainEmbedder(model embeddings.Embedder, name string, dimension int, logger *slog.Logger) *LangchainEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainEmbedder{
		model:     model,
		dimension: dimension,
		modelName: name,
		logger:    logger,
	}
}

// Embed generates an embedding vector for text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	textLen := len(text)
	e.logger.Debug("embedding text", "model", e.modelName, "text_len", textLen)

	start := time.Now()
	vector, err := e.model.EmbedQuery(ctx, text)
	duration := time.Since(start)

	if err != nil {
		e.logger.Warn("embedding failed", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	if err := checkDimension(vector, e.dimension); err != nil {
		return nil, err
	}

	e.logger.Debug("embedding complete", "model", e.modelName, "text_len", textLen, "duration_ms", duration.Milliseconds())
	return vector, nil
}

// Model returns the embedding model name.
func (e *LangchainEmbedder) Model() string {
	return e.modelName
}

// Dimension returns the expected embedding dimension.
func (e *LangchainEmbedder) Dimension() int {
	return e.dimension
}
