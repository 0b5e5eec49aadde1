// Package memory persists conversation exchanges and retrieves them by
// embedding similarity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/chorus/internal/config"
	"github.com/raphaelgruber/chorus/internal/db"
	"github.com/raphaelgruber/chorus/internal/models"
)

// Store is the vector index behind the adapter. Records are insert-only.
type Store interface {
	// Write inserts rec. Writing an existing ID returns ErrDuplicate and
	// leaves the stored record untouched.
	Write(ctx context.Context, rec models.MemoryRecord) error

	// Query returns up to k records of userID ordered nearest-first.
	Query(ctx context.Context, embedding []float32, userID string, k int) ([]models.MemoryHit, error)

	Close() error
}

var (
	// ErrDuplicate is returned when a record with the same ID already exists.
	ErrDuplicate = errors.New("memory record already exists")

	// ErrDimensionMismatch is returned for vectors that do not match the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Open creates the store named by cfg.MemoryBackend for vectors of the given
// dimension. It returns nil, nil for the "none" backend.
func Open(ctx context.Context, cfg config.Config, dimension int, logger *slog.Logger) (Store, error) {
	switch cfg.MemoryBackend {
	case config.ProviderNone:
		return nil, nil
	case config.MemoryChromem:
		return NewChromemStore(cfg.MemoryPath, dimension)
	case config.MemorySurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect memory store: %w", err)
		}
		if err := client.InitSchema(ctx, dimension); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return NewSurrealStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.MemoryBackend)
	}
}

func checkDimension(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
	}
	return nil
}
