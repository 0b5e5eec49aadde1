package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raphaelgruber/chorus/internal/models"
)

// HTTPClassifier calls a hosted text-classification endpoint that accepts
// {"inputs": text} and answers [[{"label": ..., "score": ...}, ...]].
type HTTPClassifier struct {
	url    string
	token  string
	client *http.Client
}

var _ Classifier = (*HTTPClassifier)(nil)

// NewHTTPClassifier creates a classifier for the endpoint at url.
func NewHTTPClassifier(url, token string) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns the highest-scoring label.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (models.Label, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return models.Label{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Label{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Label{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.Label{}, fmt.Errorf("classifier error (status %d): %s", resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Label{}, fmt.Errorf("read response: %w", err)
	}
	return decodeScores(data)
}

// decodeScores accepts both the nested [[...]] and flat [...] response shapes.
func decodeScores(data []byte) (models.Label, error) {
	var scores []labelScore
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 {
		scores = nested[0]
	} else if err := json.Unmarshal(data, &scores); err != nil {
		return models.Label{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(scores) == 0 {
		return models.Label{}, fmt.Errorf("%w: no labels", ErrMalformed)
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return models.Label{Label: best.Label, Score: clamp01(best.Score)}, nil
}
