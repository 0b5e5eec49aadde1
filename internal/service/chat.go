package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/chorus/internal/embedding"
	"github.com/raphaelgruber/chorus/internal/memory"
	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Names recorded in Diagnostics.Degraded for the later stages.
const (
	DegradedJudge   = "judge"
	DegradedPersona = "persona"
)

// ChatService runs the full pipeline for one message. It is built once at
// startup and shared by all requests; only the memory store is mutated.
type ChatService struct {
	analyzer     *Analyzer
	orchestrator *Orchestrator
	synthesizer  *Synthesizer
	persona      *PersonaTransformer
	memory       *memory.Adapter
	embedder     embedding.Embedder
	embedTimeout time.Duration
	topK         int

	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time

	// writes tracks background memory writes still computing their embedding.
	writes sync.WaitGroup
}

// Components groups the collaborators a ChatService is assembled from.
type Components struct {
	Analyzer     *Analyzer
	Orchestrator *Orchestrator
	Synthesizer  *Synthesizer
	Persona      *PersonaTransformer
	Memory       *memory.Adapter
	Embedder     embedding.Embedder
	EmbedTimeout time.Duration
	TopK         int
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// NewChatService assembles a ChatService.
func NewChatService(c Components) *ChatService {
	if c.Memory == nil {
		c.Memory = memory.NewAdapter(nil, memory.AdapterConfig{}, c.Metrics, c.Logger)
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 10 * time.Second
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &ChatService{
		analyzer:     c.Analyzer,
		orchestrator: c.Orchestrator,
		synthesizer:  c.Synthesizer,
		persona:      c.Persona,
		memory:       c.Memory,
		embedder:     c.Embedder,
		embedTimeout: c.EmbedTimeout,
		topK:         c.TopK,
		metrics:      c.Metrics,
		logger:       c.Logger,
		now:          time.Now,
	}
}

// Agents returns the specialist roster.
func (s *ChatService) Agents() []models.AgentDefinition {
	return s.orchestrator.Agents()
}

// PersonaName returns the name the final answer is written as.
func (s *ChatService) PersonaName() string {
	return s.persona.Name()
}

// HandleChat answers message for userID. It always returns a non-empty
// response: stage failures degrade to defaults, and anything that still
// escapes is replaced by FallbackResponse.
func (s *ChatService) HandleChat(ctx context.Context, message, userID string) (result models.ChatResult) {
	requestID := uuid.NewString()
	start := s.now()
	stage := models.StageReceived
	logger := s.logger.With("request_id", requestID, "user_id", userID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("chat pipeline failed", "stage", stage, "panic", r)
			result = models.ChatResult{
				Response: FallbackResponse,
				Diagnostics: models.Diagnostics{
					RequestID: requestID,
					Stage:     models.StageFailed,
					Degraded:  []string{fmt.Sprintf("pipeline:%s", stage)},
				},
			}
		}
		result.Diagnostics.DurationMs = time.Since(start).Milliseconds()
		s.metrics.RecordTiming(metrics.OpChat, time.Since(start))
	}()

	cctx := s.analyzer.Analyze(ctx, message, userID)
	stage = models.StageContextBuilt
	logger.Debug("context built", "sentiment", cctx.Sentiment.Label, "emotion", cctx.Emotion.Label,
		"memories", cctx.MemoryCount(), "degraded", cctx.Degraded)

	stage = models.StageAgentsDispatched
	responses := s.orchestrator.Consult(ctx, message, cctx)
	stage = models.StageAgentsCollected

	degraded := append([]string(nil), cctx.Degraded...)

	merged, ok := s.synthesizer.Synthesize(ctx, message, responses, cctx)
	if !ok {
		degraded = append(degraded, DegradedJudge)
	}
	stage = models.StageSynthesized

	final, ok := s.persona.Apply(ctx, merged, cctx.Emotion, cctx.Sentiment)
	if !ok {
		degraded = append(degraded, DegradedPersona)
	}
	stage = models.StagePersonaApplied

	s.remember(message, final, cctx)
	stage = models.StageMemoryWriteAttempted

	diag := models.Diagnostics{
		RequestID:       requestID,
		AgentsConsulted: len(responses),
		SpecialistsUsed: len(healthy(responses)),
		Agents:          make([]models.AgentDiagnostic, 0, len(responses)),
		Sentiment:       cctx.Sentiment,
		Emotion:         cctx.Emotion,
		MemoryHits:      cctx.MemoryCount(),
		Degraded:        degraded,
	}
	for _, r := range responses {
		diag.Agents = append(diag.Agents, models.AgentDiagnostic{
			Agent:      r.Agent,
			Specialty:  r.Specialty,
			Confidence: r.Confidence,
			Degraded:   r.Degraded,
		})
	}

	stage = models.StageResponded
	diag.Stage = stage

	logger.Info("chat handled", "agents", diag.AgentsConsulted, "specialists_used", diag.SpecialistsUsed,
		"memory_hits", diag.MemoryHits, "degraded", degraded)

	return models.ChatResult{Response: final, Diagnostics: diag}
}

// remember stores the exchange in the background. The exchange text is
// embedded on its own; if that fails the message embedding is used instead.
func (s *ChatService) remember(message, response string, cctx models.ConversationContext) {
	if !s.memory.Available() {
		return
	}

	text := ExchangeText(s.persona.Name(), message, response)
	meta := models.MemoryMetadata{
		Sentiment: cctx.Sentiment,
		Emotion:   cctx.Emotion,
		Timestamp: s.now(),
	}

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()

		vector := embedText(context.Background(), s.embedder, s.embedTimeout, text, s.metrics, s.logger).Or(nil)
		if len(vector) == 0 {
			vector = cctx.Embedding
		}
		if len(vector) == 0 {
			s.logger.Info("no embedding for exchange, memory not stored", "user_id", cctx.UserID)
			return
		}
		s.memory.Write(cctx.UserID, text, vector, meta)
	}()
}

// SearchMemory embeds query and returns the user's related memories.
func (s *ChatService) SearchMemory(ctx context.Context, query, userID string, limit int) ([]models.MemoryHit, error) {
	if limit <= 0 {
		limit = s.topK
	}
	out := embedText(ctx, s.embedder, s.embedTimeout, query, s.metrics, s.logger)
	if !out.OK() {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, out.Err)
	}
	hits, _ := s.memory.Search(ctx, out.Value, userID, limit)
	return hits, nil
}

// Wait blocks until every background memory write has finished.
func (s *ChatService) Wait() {
	s.writes.Wait()
	s.memory.Wait()
}

// Close drains background writes and releases the memory store.
func (s *ChatService) Close() error {
	s.writes.Wait()
	return s.memory.Close()
}
