// Package llm provides text generation over langchaingo providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/chorus/internal/config"
	"github.com/raphaelgruber/chorus/internal/metrics"
)

// SamplingOptions controls a single generation call.
type SamplingOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int

	// MetricsOp is the collector operation the call is recorded under.
	MetricsOp string
}

// Generator produces text for a prompt with a named model.
type Generator interface {
	Generate(ctx context.Context, modelID, prompt string, opts SamplingOptions) (string, error)
}

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("empty model response")

// Factory creates a langchaingo model for a model identifier.
type Factory func(ctx context.Context, modelID string) (llms.Model, error)

// Client is a Generator backed by langchaingo. Provider clients are created
// lazily per model identifier and reused across requests.
type Client struct {
	factory Factory
	metrics *metrics.Collector
	logger  *slog.Logger

	mu     sync.Mutex
	models map[string]llms.Model
}

var _ Generator = (*Client)(nil)

// NewClient creates a Client for the provider named in cfg.
func NewClient(cfg config.Config, collector *metrics.Collector, logger *slog.Logger) (*Client, error) {
	factory, err := ProviderFactory(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithFactory(factory, collector, logger), nil
}

// NewClientWithFactory creates a Client with a custom model factory.
func NewClientWithFactory(factory Factory, collector *metrics.Collector, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		factory: factory,
		metrics: collector,
		logger:  logger,
		models:  make(map[string]llms.Model),
	}
}

// ProviderFactory returns a Factory for the configured LLM provider.
func ProviderFactory(cfg config.Config) (Factory, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return func(_ context.Context, modelID string) (llms.Model, error) {
			m, err := ollama.New(
				ollama.WithModel(modelID),
				ollama.WithServerURL(cfg.OllamaHost),
			)
			if err != nil {
				return nil, fmt.Errorf("create ollama model: %w", err)
			}
			return m, nil
		}, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		return func(_ context.Context, modelID string) (llms.Model, error) {
			m, err := openai.New(
				openai.WithToken(cfg.OpenAIAPIKey),
				openai.WithModel(modelID),
			)
			if err != nil {
				return nil, fmt.Errorf("create openai model: %w", err)
			}
			return m, nil
		}, nil

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		return func(_ context.Context, modelID string) (llms.Model, error) {
			m, err := anthropic.New(
				anthropic.WithToken(cfg.AnthropicAPIKey),
				anthropic.WithModel(modelID),
			)
			if err != nil {
				return nil, fmt.Errorf("create anthropic model: %w", err)
			}
			return m, nil
		}, nil

	case config.ProviderBedrock:
		var (
			once       sync.Once
			runtime    *bedrockruntime.Client
			runtimeErr error
		)
		return func(_ context.Context, modelID string) (llms.Model, error) {
			once.Do(func() {
				// Shared by every later call, so not tied to the first caller's ctx.
				awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
				if err != nil {
					runtimeErr = fmt.Errorf("load aws config: %w", err)
					return
				}
				runtime = bedrockruntime.NewFromConfig(awsCfg)
			})
			if runtimeErr != nil {
				return nil, runtimeErr
			}
			m, err := bedrock.New(
				bedrock.WithClient(runtime),
				bedrock.WithModel(modelID),
			)
			if err != nil {
				return nil, fmt.Errorf("create bedrock model: %w", err)
			}
			return m, nil
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

func (c *Client) model(ctx context.Context, modelID string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[modelID]; ok {
		return m, nil
	}
	m, err := c.factory(ctx, modelID)
	if err != nil {
		return nil, err
	}
	c.models[modelID] = m
	return m, nil
}

// Generate sends prompt to modelID and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, modelID, prompt string, opts SamplingOptions) (string, error) {
	m, err := c.model(ctx, modelID)
	if err != nil {
		return "", err
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(opts.TopP))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, messages, callOpts...)
	duration := time.Since(start)

	if err != nil {
		err = wrapFatalError(err)
		c.recordFailure(opts.MetricsOp)
		c.logger.Debug("generation failed", "model", modelID, "op", opts.MetricsOp, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate with %s: %w", modelID, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		c.recordFailure(opts.MetricsOp)
		return "", fmt.Errorf("generate with %s: %w", modelID, ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	if opts.MetricsOp != "" {
		c.metrics.RecordLLMUsage(opts.MetricsOp, duration, in, out)
	}
	c.logger.Debug("generation complete", "model", modelID, "op", opts.MetricsOp,
		"duration_ms", duration.Milliseconds(), "input_tokens", in, "output_tokens", out)

	return choice.Content, nil
}

func (c *Client) recordFailure(op string) {
	if op != "" {
		c.metrics.RecordFailure(op)
	}
}

// tokenUsage reads token counts from provider generation info.
// Providers disagree on key names, so both conventions are checked.
func tokenUsage(info map[string]any) (in, out int64) {
	in = firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
