package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Orchestrator consults every specialist concurrently.
type Orchestrator struct {
	agents  []models.AgentDefinition
	gen     llm.Generator
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator over a fixed roster.
func NewOrchestrator(agents []models.AgentDefinition, gen llm.Generator, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	roster := make([]models.AgentDefinition, len(agents))
	copy(roster, agents)
	return &Orchestrator{
		agents:  roster,
		gen:     gen,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Agents returns a copy of the roster.
func (o *Orchestrator) Agents() []models.AgentDefinition {
	out := make([]models.AgentDefinition, len(o.agents))
	copy(out, o.agents)
	return out
}

// Consult returns exactly one response per agent, in roster order. Each
// consultation is bounded by the specialist deadline; a failed or late
// consultation yields a degraded placeholder.
func (o *Orchestrator) Consult(ctx context.Context, message string, cctx models.ConversationContext) []models.AgentResponse {
	responses := make([]models.AgentResponse, len(o.agents))

	var g errgroup.Group
	for i, agent := range o.agents {
		g.Go(func() error {
			responses[i] = o.consult(ctx, agent, message, cctx)
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

func (o *Orchestrator) consult(ctx context.Context, agent models.AgentDefinition, message string, cctx models.ConversationContext) models.AgentResponse {
	prompt := BuildAgentPrompt(agent, message, cctx)

	start := time.Now()
	out := callWithDeadline(ctx, o.timeout, func(ctx context.Context) (string, error) {
		return o.gen.Generate(ctx, agent.Model, prompt, specialistSampling)
	})
	if out.Err == nil && strings.TrimSpace(out.Value) == "" {
		out.Err = llm.ErrEmptyResponse
	}

	if out.Err != nil {
		level := slog.LevelWarn
		if errors.Is(out.Err, llm.ErrFatalAPI) {
			level = slog.LevelError
		}
		o.logger.Log(ctx, level, "specialist failed", "agent", agent.Name, "model", agent.Model,
			"duration_ms", time.Since(start).Milliseconds(), "error", out.Err)
		return models.AgentResponse{
			Agent:      agent.Name,
			Specialty:  agent.Specialty,
			Text:       degradedText(agent.Name),
			Confidence: 0,
			Timestamp:  o.now(),
			Degraded:   true,
		}
	}

	o.logger.Debug("specialist answered", "agent", agent.Name, "specialty", agent.Specialty,
		"duration_ms", time.Since(start).Milliseconds())
	return models.AgentResponse{
		Agent:      agent.Name,
		Specialty:  agent.Specialty,
		Text:       strings.TrimSpace(out.Value),
		Confidence: specialistConfidence,
		Timestamp:  o.now(),
	}
}

// healthy returns the non-degraded responses.
func healthy(responses []models.AgentResponse) []models.AgentResponse {
	out := make([]models.AgentResponse, 0, len(responses))
	for _, r := range responses {
		if !r.Degraded {
			out = append(out, r)
		}
	}
	return out
}
