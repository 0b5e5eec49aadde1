package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

// PersonaTransformer rewrites the merged answer in the persona's voice.
type PersonaTransformer struct {
	gen     llm.Generator
	model   string
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPersonaTransformer creates a transformer speaking as name.
func NewPersonaTransformer(gen llm.Generator, model, name string, timeout time.Duration, logger *slog.Logger) *PersonaTransformer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonaTransformer{gen: gen, model: model, name: name, timeout: timeout, logger: logger}
}

// Name returns the persona's display name.
func (p *PersonaTransformer) Name() string {
	return p.name
}

// Apply returns the rewritten text and true, or merged unchanged and false
// when the rewrite fails.
func (p *PersonaTransformer) Apply(ctx context.Context, merged string, emotion, sentiment models.Label) (string, bool) {
	prompt := buildPersonaPrompt(p.name, merged, emotion, sentiment)
	out := callWithDeadline(ctx, p.timeout, func(ctx context.Context) (string, error) {
		return p.gen.Generate(ctx, p.model, prompt, personaSampling)
	})

	text := strings.TrimSpace(out.Value)
	if out.Err != nil || text == "" {
		p.logger.Warn("persona transform failed, returning merged answer", "model", p.model, "error", out.Err)
		return merged, false
	}
	return text, true
}
