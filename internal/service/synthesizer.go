package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Synthesizer merges specialist answers through one judge consultation.
type Synthesizer struct {
	gen     llm.Generator
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSynthesizer creates a synthesizer that consults model.
func NewSynthesizer(gen llm.Generator, model string, timeout time.Duration, logger *slog.Logger) *Synthesizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, model: model, timeout: timeout, logger: logger}
}

// Synthesize returns the merged answer and true, or FallbackSynthesis and
// false when there is nothing to merge or the judge fails.
func (s *Synthesizer) Synthesize(ctx context.Context, message string, responses []models.AgentResponse, cctx models.ConversationContext) (string, bool) {
	if len(healthy(responses)) == 0 {
		s.logger.Warn("no specialist answered, using fallback synthesis")
		return FallbackSynthesis, false
	}

	prompt := buildJudgePrompt(message, responses, cctx)
	out := callWithDeadline(ctx, s.timeout, func(ctx context.Context) (string, error) {
		return s.gen.Generate(ctx, s.model, prompt, judgeSampling)
	})

	text := strings.TrimSpace(out.Value)
	if out.Err != nil || text == "" {
		s.logger.Warn("judge synthesis failed, using fallback", "model", s.model, "error", out.Err)
		return FallbackSynthesis, false
	}
	return text, true
}
