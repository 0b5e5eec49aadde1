package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultVoyageModel is the default Voyage AI embedding model.
	DefaultVoyageModel = "voyage-3"

	// DefaultVoyageDimension is the dimension for voyage-3.
	DefaultVoyageDimension = 1024

	// VoyageAPIEndpoint is the Voyage AI API endpoint.
	VoyageAPIEndpoint = "https://api.voyageai.com/v1/embeddings"
)

// VoyageClient implements Embedder using the Voyage AI HTTP API.
type VoyageClient struct {
	apiKey    string
	model     string
	dimension int
	endpoint  string
	client    *http.Client
}

var _ Embedder = (*VoyageClient)(nil)

// NewVoyageClient creates a new Voyage AI embedding client.
// If model is empty, uses DefaultVoyageModel.
// If expectedDimension is 0, uses DefaultVoyageDimension.
func NewVoyageClient(apiKey, model string, expectedDimension int) (*VoyageClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required for Voyage embeddings")
	}
	if model == "" {
		model = DefaultVoyageModel
	}
	if expectedDimension == 0 {
		expectedDimension = DefaultVoyageDimension
	}

	return &VoyageClient{
		apiKey:    apiKey,
		model:     model,
		dimension: expectedDimension,
		endpoint:  VoyageAPIEndpoint,
		client:    &http.Client{},
	}, nil
}

// WithEndpoint overrides the API endpoint (used by tests and proxies).
func (c *VoyageClient) WithEndpoint(endpoint string) *VoyageClient {
	c.endpoint = endpoint
	return c
}

// Model returns the configured embedding model name.
func (c *VoyageClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *VoyageClient) Dimension() int {
	return c.dimension
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates an embedding vector for the given text.
func (c *VoyageClient) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(voyageRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var voyageResp voyageResponse
	if err := json.NewDecoder(resp.Body).Decode(&voyageResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(voyageResp.Data) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want 1", len(voyageResp.Data))
	}

	vector := voyageResp.Data[0].Embedding
	if err := checkDimension(vector, c.dimension); err != nil {
		return nil, err
	}
	return vector, nil
}
