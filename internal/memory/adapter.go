package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

// DefaultMaxDistance is the cosine distance above which a hit is not
// considered related to the query.
const DefaultMaxDistance = 0.65

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Timeout     time.Duration
	MaxDistance float64
}

// Adapter gives the pipeline a failure-free view of a Store: writes are
// fire-and-forget and searches degrade to an empty list.
type Adapter struct {
	store       Store
	timeout     time.Duration
	maxDistance float64
	metrics     *metrics.Collector
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewAdapter wraps store. A nil store yields an adapter that never
// returns memories and drops every write.
func NewAdapter(store Store, cfg AdapterConfig, collector *metrics.Collector, logger *slog.Logger) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultMaxDistance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		store:       store,
		timeout:     cfg.Timeout,
		maxDistance: cfg.MaxDistance,
		metrics:     collector,
		logger:      logger,
	}
}

// Available reports whether a backing store is configured.
func (a *Adapter) Available() bool {
	return a.store != nil
}

// RecordID is the idempotency key of an exchange: the user plus the
// integer second it happened.
func RecordID(userID string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", userID, ts.Unix())
}

// Write persists an exchange in the background. Failures are logged and
// swallowed; a second write in the same second for the same user is dropped.
func (a *Adapter) Write(userID, text string, embedding []float32, meta models.MemoryMetadata) {
	if a.store == nil {
		return
	}
	if len(embedding) == 0 {
		a.logger.Debug("skipping memory write without embedding", "user_id", userID)
		return
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	rec := models.MemoryRecord{
		ID:        RecordID(userID, meta.Timestamp),
		UserID:    userID,
		Text:      text,
		Embedding: embedding,
		Metadata:  meta,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		start := time.Now()
		_, err := guard(context.Background(), a.timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.store.Write(ctx, rec)
		})
		a.metrics.RecordOutcome(metrics.OpMemoryWrite, time.Since(start), err)

		switch {
		case err == nil:
			a.logger.Debug("memory stored", "id", rec.ID)
		case errors.Is(err, ErrDuplicate):
			a.logger.Info("memory already stored for this second", "id", rec.ID)
		default:
			a.logger.Warn("memory write failed", "id", rec.ID, "error", err)
		}
	}()
}

// Search returns up to k memories of userID nearest to embedding whose
// distance is within the configured threshold. It never fails: an empty
// embedding, a missing store or a store error all yield an empty list.
// ok is false when the store was missing or the query did not succeed.
func (a *Adapter) Search(ctx context.Context, embedding []float32, userID string, k int) (hits []models.MemoryHit, ok bool) {
	if a.store == nil {
		return []models.MemoryHit{}, false
	}
	if len(embedding) == 0 || k <= 0 {
		return []models.MemoryHit{}, true
	}

	start := time.Now()
	hits, err := guard(ctx, a.timeout, func(ctx context.Context) ([]models.MemoryHit, error) {
		return a.store.Query(ctx, embedding, userID, k)
	})
	a.metrics.RecordOutcome(metrics.OpMemorySearch, time.Since(start), err)
	if err != nil {
		a.logger.Warn("memory search failed", "user_id", userID, "error", err)
		return []models.MemoryHit{}, false
	}

	related := make([]models.MemoryHit, 0, len(hits))
	for _, h := range hits {
		if h.Distance <= a.maxDistance {
			related = append(related, h)
		}
	}
	return related, true
}

// Wait blocks until in-flight writes have finished.
func (a *Adapter) Wait() {
	a.wg.Wait()
}

// Close drains pending writes and closes the store.
func (a *Adapter) Close() error {
	a.wg.Wait()
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
