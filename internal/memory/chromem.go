package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/raphaelgruber/chorus/internal/models"
)

const collectionName = "user_interactions"

// Metadata keys stored with every chromem document.
const (
	metaUserID         = "user_id"
	metaTimestamp      = "timestamp"
	metaSentiment      = "sentiment"
	metaSentimentScore = "sentiment_score"
	metaEmotion        = "emotion"
	metaEmotionScore   = "emotion_score"
)

// ChromemStore is an embedded vector store, optionally persisted to disk.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int

	// mu serializes the exists-check and insert so concurrent writers
	// cannot both insert the same ID.
	mu sync.Mutex
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore opens a store. An empty path keeps everything in memory.
func NewChromemStore(path string, dimension int) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{db: db, collection: collection, dimension: dimension}, nil
}

// noEmbedding is installed as the collection's embedding function; vectors
// are always supplied by the caller.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be supplied by the caller")
}

// Write inserts rec unless a document with the same ID exists.
func (s *ChromemStore) Write(ctx context.Context, rec models.MemoryRecord) error {
	if err := checkDimension(rec.Embedding, s.dimension); err != nil {
		return err
	}
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("write memory %s: empty embedding", rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.collection.GetByID(ctx, rec.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}

	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Text,
		Embedding: rec.Embedding,
		Metadata: map[string]string{
			metaUserID:         rec.UserID,
			metaTimestamp:      strconv.FormatInt(rec.Metadata.Timestamp.Unix(), 10),
			metaSentiment:      rec.Metadata.Sentiment.Label,
			metaSentimentScore: strconv.FormatFloat(rec.Metadata.Sentiment.Score, 'f', -1, 64),
			metaEmotion:        rec.Metadata.Emotion.Label,
			metaEmotionScore:   strconv.FormatFloat(rec.Metadata.Emotion.Score, 'f', -1, 64),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("write memory %s: %w", rec.ID, err)
	}
	return nil
}

// Query returns the k nearest documents of userID.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, userID string, k int) ([]models.MemoryHit, error) {
	if err := checkDimension(embedding, s.dimension); err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection.
	n := min(k, s.collection.Count())
	if n <= 0 || len(embedding) == 0 {
		return []models.MemoryHit{}, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, n, map[string]string{metaUserID: userID}, nil)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	hits := make([]models.MemoryHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.MemoryHit{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: decodeMetadata(r.Metadata),
			Distance: 1 - float64(r.Similarity),
		})
	}
	return hits, nil
}

// Count returns the number of stored documents across all users.
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

// Close is a no-op; persistent databases write through on every insert.
func (s *ChromemStore) Close() error {
	return nil
}

func decodeMetadata(m map[string]string) models.MemoryMetadata {
	sentimentScore, _ := strconv.ParseFloat(m[metaSentimentScore], 64)
	emotionScore, _ := strconv.ParseFloat(m[metaEmotionScore], 64)
	ts, _ := strconv.ParseInt(m[metaTimestamp], 10, 64)

	return models.MemoryMetadata{
		Sentiment: models.Label{Label: m[metaSentiment], Score: sentimentScore},
		Emotion:   models.Label{Label: m[metaEmotion], Score: emotionScore},
		Timestamp: time.Unix(ts, 0).UTC(),
	}
}
