package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

var labelSets = map[Kind][]string{
	KindSentiment: {"POSITIVE", "NEGATIVE", "NEUTRAL"},
	KindEmotion:   {"joy", "sadness", "anger", "fear", "surprise", "disgust", "neutral"},
}

// LLMClassifier asks a language model for a label at temperature 0,
// so identical text yields an identical label.
type LLMClassifier struct {
	gen   llm.Generator
	model string
	kind  Kind
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates a classifier that prompts model through gen.
func NewLLMClassifier(gen llm.Generator, model string, kind Kind) *LLMClassifier {
	return &LLMClassifier{gen: gen, model: model, kind: kind}
}

func (c *LLMClassifier) prompt(text string) string {
	return fmt.Sprintf(`Classify the %s of the text below.
Allowed labels: %s
Answer with JSON only, in the form {"label": "<label>", "score": <confidence between 0 and 1>}.

Text:
%s`, c.kind, strings.Join(labelSets[c.kind], ", "), text)
}

// Classify returns the model's label for text.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (models.Label, error) {
	out, err := c.gen.Generate(ctx, c.model, c.prompt(text), llm.SamplingOptions{
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		return models.Label{}, fmt.Errorf("classify %s: %w", c.kind, err)
	}
	return parseLabel(out, labelSets[c.kind])
}

// parseLabel extracts the first JSON object in out and normalizes its label
// against allowed. Scores are clamped to [0, 1].
func parseLabel(out string, allowed []string) (models.Label, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return models.Label{}, fmt.Errorf("%w: %q", ErrMalformed, out)
	}

	var raw struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(out[start:end+1]), &raw); err != nil {
		return models.Label{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(raw.Label), a) {
			return models.Label{Label: a, Score: clamp01(raw.Score)}, nil
		}
	}
	return models.Label{}, fmt.Errorf("%w: unknown label %q", ErrMalformed, raw.Label)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
