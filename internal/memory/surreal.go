package memory

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/chorus/internal/db"
	"github.com/raphaelgruber/chorus/internal/models"
)

// SurrealStore keeps memories in SurrealDB behind an HNSW cosine index.
type SurrealStore struct {
	client *db.Client
}

var _ Store = (*SurrealStore)(nil)

// NewSurrealStore wraps a connected client whose schema is initialized.
func NewSurrealStore(client *db.Client) *SurrealStore {
	return &SurrealStore{client: client}
}

func (s *SurrealStore) Write(ctx context.Context, rec models.MemoryRecord) error {
	return translate(s.client.CreateMemory(ctx, rec))
}

func (s *SurrealStore) Query(ctx context.Context, embedding []float32, userID string, k int) ([]models.MemoryHit, error) {
	if len(embedding) == 0 {
		return []models.MemoryHit{}, nil
	}
	rows, err := s.client.SearchMemories(ctx, embedding, userID, k)
	if err != nil {
		return nil, translate(err)
	}

	hits := make([]models.MemoryHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, models.MemoryHit{
			ID:      r.ID,
			Content: r.Content,
			Metadata: models.MemoryMetadata{
				Sentiment: r.Sentiment,
				Emotion:   r.Emotion,
				Timestamp: time.Unix(r.Timestamp, 0).UTC(),
			},
			Distance: r.Distance,
		})
	}
	return hits, nil
}

func (s *SurrealStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}

// translate maps database sentinels onto the store's own.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrAlreadyExists):
		return errors.Join(ErrDuplicate, err)
	case errors.Is(err, db.ErrDimensionMismatch):
		return errors.Join(ErrDimensionMismatch, err)
	}
	return err
}
