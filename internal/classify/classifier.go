// Package classify labels text with a sentiment or emotion.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/chorus/internal/config"
	"github.com/raphaelgruber/chorus/internal/llm"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Classifier assigns a label and confidence score to text.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Label, error)
}

// Kind selects the label set a classifier produces.
type Kind string

const (
	KindSentiment Kind = "sentiment"
	KindEmotion   Kind = "emotion"
)

// ErrMalformed is returned when a backend answers with something that is not a label.
var ErrMalformed = errors.New("malformed classifier output")

// New builds the sentiment and emotion classifiers named by cfg.ClassifierProvider.
// Either may be nil, in which case callers use the neutral default.
func New(cfg config.Config, gen llm.Generator, logger *slog.Logger) (sentiment, emotion Classifier, err error) {
	switch cfg.ClassifierProvider {
	case config.ProviderNone:
		return nil, nil, nil
	case config.ClassifierLLM:
		if gen == nil {
			return nil, nil, fmt.Errorf("llm classifier requires a generator")
		}
		return NewLLMClassifier(gen, cfg.ClassifierModel, KindSentiment),
			NewLLMClassifier(gen, cfg.ClassifierModel, KindEmotion), nil
	case config.ClassifierHTTP:
		if cfg.SentimentURL != "" {
			sentiment = NewHTTPClassifier(cfg.SentimentURL, cfg.HFAPIToken)
		}
		if cfg.EmotionURL != "" {
			emotion = NewHTTPClassifier(cfg.EmotionURL, cfg.HFAPIToken)
		}
		if sentiment == nil || emotion == nil {
			logger.Warn("http classifier partially configured, missing labels default to neutral",
				"sentiment", sentiment != nil, "emotion", emotion != nil)
		}
		return sentiment, emotion, nil
	default:
		return nil, nil, fmt.Errorf("unsupported classifier provider: %s", cfg.ClassifierProvider)
	}
}
