package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/chorus/internal/classify"
	"github.com/raphaelgruber/chorus/internal/embedding"
	"github.com/raphaelgruber/chorus/internal/memory"
	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Names recorded in ConversationContext.Degraded.
const (
	DegradedSentiment = "sentiment"
	DegradedEmotion   = "emotion"
	DegradedEmbedding = "embedding"
	DegradedMemory    = "memory"
)

// Analyzer builds the per-message ConversationContext.
type Analyzer struct {
	sentiment classify.Classifier
	emotion   classify.Classifier
	embedder  embedding.Embedder
	memory    *memory.Adapter

	topK            int
	classifyTimeout time.Duration
	embedTimeout    time.Duration

	metrics *metrics.Collector
	logger  *slog.Logger
}

// AnalyzerConfig holds the analyzer's limits.
type AnalyzerConfig struct {
	TopK            int
	ClassifyTimeout time.Duration
	EmbedTimeout    time.Duration
}

// NewAnalyzer creates an analyzer. Any collaborator may be nil; its
// sub-operation then always yields the documented default.
func NewAnalyzer(sentiment, emotion classify.Classifier, embedder embedding.Embedder, mem *memory.Adapter,
	cfg AnalyzerConfig, collector *metrics.Collector, logger *slog.Logger) *Analyzer {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 10 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		sentiment:       sentiment,
		emotion:         emotion,
		embedder:        embedder,
		memory:          mem,
		topK:            cfg.TopK,
		classifyTimeout: cfg.ClassifyTimeout,
		embedTimeout:    cfg.EmbedTimeout,
		metrics:         collector,
		logger:          logger,
	}
}

// Analyze classifies the message, embeds it and retrieves related memories.
// The sub-operations run concurrently and fail independently: memory
// retrieval depends on the embedding only, never on classification.
func (a *Analyzer) Analyze(ctx context.Context, message, userID string) models.ConversationContext {
	var (
		sentiment, emotion Outcome[models.Label]
		vector             Outcome[[]float32]
		memories           []models.MemoryHit
		searched, memOK    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sentiment = a.classify(gctx, a.sentiment, metrics.OpSentiment, message)
		return nil
	})
	g.Go(func() error {
		emotion = a.classify(gctx, a.emotion, metrics.OpEmotion, message)
		return nil
	})
	g.Go(func() error {
		vector = a.embed(gctx, message)
		if vector.OK() && a.memory != nil {
			searched = true
			memories, memOK = a.memory.Search(gctx, vector.Value, userID, a.topK)
		}
		return nil
	})
	_ = g.Wait()

	cctx := models.ConversationContext{
		Message:   message,
		UserID:    userID,
		Sentiment: sentiment.Or(models.NeutralSentiment),
		Emotion:   emotion.Or(models.NeutralEmotion),
		Embedding: vector.Or(nil),
		Memories:  memories,
	}
	if cctx.Memories == nil {
		cctx.Memories = []models.MemoryHit{}
	}

	if !sentiment.OK() {
		cctx.Degraded = append(cctx.Degraded, DegradedSentiment)
	}
	if !emotion.OK() {
		cctx.Degraded = append(cctx.Degraded, DegradedEmotion)
	}
	if !vector.OK() {
		cctx.Degraded = append(cctx.Degraded, DegradedEmbedding)
	}
	if a.memory == nil || !a.memory.Available() || (searched && !memOK) {
		cctx.Degraded = append(cctx.Degraded, DegradedMemory)
	}

	return cctx
}

func (a *Analyzer) classify(ctx context.Context, c classify.Classifier, op, text string) Outcome[models.Label] {
	if c == nil {
		return Outcome[models.Label]{Err: errNotConfigured}
	}

	start := time.Now()
	out := callWithDeadline(ctx, a.classifyTimeout, func(ctx context.Context) (models.Label, error) {
		return c.Classify(ctx, text)
	})
	a.metrics.RecordOutcome(op, time.Since(start), out.Err)

	if out.Err != nil {
		a.logger.Warn("classification failed, using neutral default", "kind", op, "error", out.Err)
	}
	return out
}

func (a *Analyzer) embed(ctx context.Context, text string) Outcome[[]float32] {
	return embedText(ctx, a.embedder, a.embedTimeout, text, a.metrics, a.logger)
}

// embedText computes an embedding with a deadline. An empty vector counts as a failure.
func embedText(ctx context.Context, e embedding.Embedder, timeout time.Duration, text string,
	collector *metrics.Collector, logger *slog.Logger) Outcome[[]float32] {
	if e == nil {
		return Outcome[[]float32]{Err: errNotConfigured}
	}

	start := time.Now()
	out := callWithDeadline(ctx, timeout, func(ctx context.Context) ([]float32, error) {
		return e.Embed(ctx, text)
	})
	if out.Err == nil && len(out.Value) == 0 {
		out.Err = errEmptyEmbedding
	}
	collector.RecordOutcome(metrics.OpEmbedding, time.Since(start), out.Err)

	if out.Err != nil {
		logger.Warn("embedding failed", "model", e.Model(), "error", out.Err)
	}
	return out
}
