package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chorus/internal/config"
)

type stubLangchain struct {
	vector []float32
	err    error
}

func (s stubLangchain) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, s.err
}

func (s stubLangchain) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return s.vector, s.err
}

func TestLangchainEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		stub    stubLangchain
		dim     int
		wantErr error
		anyErr  bool
	}{
		{name: "ok", stub: stubLangchain{vector: []float32{1, 2, 3}}, dim: 3},
		{name: "dimension mismatch", stub: stubLangchain{vector: []float32{1, 2}}, dim: 3, wantErr: ErrDimensionMismatch},
		{name: "provider error", stub: stubLangchain{err: errors.New("down")}, dim: 3, anyErr: true},
		{name: "empty vector", stub: stubLangchain{}, dim: 3, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newLangchainEmbedder(tt.stub, "all-minilm:l6-v2", tt.dim, nil)
			v, err := e.Embed(context.Background(), "hello")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Len(t, v, tt.dim)
			}
		})
	}
}

func TestVoyageClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req voyageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hi"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3,0.4],"index":0}]}`))
	}))
	defer srv.Close()

	c, err := NewVoyageClient("secret", "voyage-3-lite", 4)
	require.NoError(t, err)
	c.WithEndpoint(srv.URL)

	v, err := c.Embed(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, v)

	c.dimension = 8
	_, err = c.Embed(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestVoyageClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewVoyageClient("secret", "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultVoyageModel, c.Model())
	assert.Equal(t, DefaultVoyageDimension, c.Dimension())

	_, err = c.WithEndpoint(srv.URL).Embed(context.Background(), "hi")
	assert.ErrorContains(t, err, "status 429")

	_, err = NewVoyageClient("", "", 0)
	assert.Error(t, err)
}

type countingEmbedder struct {
	calls atomic.Int32
	fail  bool
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("unavailable")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Model() string  { return "counting" }
func (c *countingEmbedder) Dimension() int { return 2 }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCachedEmbedder(inner, 100)
	require.NoError(t, err)
	defer c.Close()

	v1, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	c.Wait()

	v2, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), inner.calls.Load())

	v2[0] = 99
	v3, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), v3[0], "cached vector is not shared with callers")

	assert.Equal(t, "counting", c.Model())
	assert.Equal(t, 2, c.Dimension())
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	c.Wait()
	_, err = c.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestNew(t *testing.T) {
	e, err := New(config.Config{EmbedProvider: config.ProviderNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = New(config.Config{EmbedProvider: "word2vec"}, nil)
	assert.ErrorContains(t, err, "unknown embedding provider")

	e, err = New(config.Config{EmbedProvider: config.ProviderVoyage, VoyageAPIKey: "k", EmbedCacheEntries: 16}, nil)
	require.NoError(t, err)
	_, cached := e.(*CachedEmbedder)
	assert.True(t, cached)
	e.(*CachedEmbedder).Close()
}
