// Package db provides SurrealDB query functions for conversation memories.
package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/chorus/internal/models"
)

// MemoryRow is a memory record as returned by search queries.
type MemoryRow struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Content   string       `json:"content"`
	Sentiment models.Label `json:"sentiment"`
	Emotion   models.Label `json:"emotion"`
	Timestamp int64        `json:"ts"`
	Distance  float64      `json:"distance"`
}

// CreateMemory inserts a memory record. A second write with the same id
// returns ErrAlreadyExists.
func (c *Client) CreateMemory(ctx context.Context, rec models.MemoryRecord) error {
	if c.dimension > 0 && len(rec.Embedding) != c.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(rec.Embedding), c.dimension)
	}

	sql := `
		CREATE type::record("memory", $id) CONTENT {
			user_id: $user_id,
			content: $content,
			embedding: $embedding,
			sentiment: $sentiment,
			emotion: $emotion,
			ts: $ts
		}
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":        rec.ID,
		"user_id":   rec.UserID,
		"content":   rec.Text,
		"embedding": rec.Embedding,
		"sentiment": map[string]any{"label": rec.Metadata.Sentiment.Label, "score": rec.Metadata.Sentiment.Score},
		"emotion":   map[string]any{"label": rec.Metadata.Emotion.Label, "score": rec.Metadata.Emotion.Score},
		"ts":        rec.Metadata.Timestamp.Unix(),
	})
	if err != nil {
		return fmt.Errorf("create memory: %w", wrapQueryError(err))
	}
	return nil
}

// SearchMemories returns up to limit memories of userID nearest to embedding,
// ordered by ascending cosine distance.
func (c *Client) SearchMemories(ctx context.Context, embedding []float32, userID string, limit int) ([]MemoryRow, error) {
	if limit <= 0 {
		return []MemoryRow{}, nil
	}
	if c.dimension > 0 && len(embedding) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), c.dimension)
	}

	// HNSW with ef=40 for better recall
	sql := fmt.Sprintf(`
		SELECT record::id(id) AS id, user_id, content, sentiment, emotion, ts,
			vector::distance::knn() AS distance
		FROM memory
		WHERE user_id = $user_id AND embedding <|%d,40|> $emb
		ORDER BY distance
		LIMIT $limit
	`, limit)

	results, err := surrealdb.Query[[]MemoryRow](ctx, c.db, sql, map[string]any{
		"user_id": userID,
		"emb":     embedding,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []MemoryRow{}, nil
}
