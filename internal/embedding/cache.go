package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes embeddings by text. Repeated messages from the
// same conversation skip the provider round trip.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps next with a cache holding roughly maxEntries vectors.
func NewCachedEmbedder(next Embedder, maxEntries int) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxEntries)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed returns a cached vector or computes and stores a new one.
// Failed calls are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.next.Model() + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return cloneVector(v.([]float32)), nil
	}

	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, cloneVector(vector), 1)
	return vector, nil
}

// Model returns the wrapped embedder's model name.
func (c *CachedEmbedder) Model() string {
	return c.next.Model()
}

// Dimension returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
