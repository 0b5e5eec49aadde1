package models

import "time"

// MemoryMetadata is stored alongside every memory record.
type MemoryMetadata struct {
	Sentiment Label     `json:"sentiment"`
	Emotion   Label     `json:"emotion"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryRecord is a persisted conversation exchange. Records are insert-only.
type MemoryRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"-"`
	Metadata  MemoryMetadata `json:"metadata"`
}

// MemoryHit is a record returned by similarity search.
// Distance is cosine distance: 0 is identical, larger is less similar.
type MemoryHit struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata MemoryMetadata `json:"metadata"`
	Distance float64        `json:"distance"`
}
