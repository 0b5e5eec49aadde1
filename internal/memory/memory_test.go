package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/chorus/internal/metrics"
	"github.com/raphaelgruber/chorus/internal/models"
)

func record(id, user string, emb []float32) models.MemoryRecord {
	return models.MemoryRecord{
		ID:        id,
		UserID:    user,
		Text:      "User: " + id,
		Embedding: emb,
		Metadata: models.MemoryMetadata{
			Sentiment: models.Label{Label: "POSITIVE", Score: 0.75},
			Emotion:   models.NeutralEmotion,
			Timestamp: time.Unix(1700000000, 0),
		},
	}
}

func TestChromemStoreWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", 3)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, record("a", "u1", []float32{1, 0, 0})))
	require.NoError(t, s.Write(ctx, record("b", "u1", []float32{0, 1, 0})))
	require.NoError(t, s.Write(ctx, record("c", "u2", []float32{1, 0, 0})))

	hits, err := s.Query(ctx, []float32{1, 0.1, 0}, "u1", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a", hits[0].ID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
	assert.Equal(t, "POSITIVE", hits[0].Metadata.Sentiment.Label)
	assert.InDelta(t, 0.75, hits[0].Metadata.Sentiment.Score, 1e-9)
	assert.Equal(t, int64(1700000000), hits[0].Metadata.Timestamp.Unix())
}

func TestChromemStoreEmptyAndOversizedK(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", 2)
	require.NoError(t, err)

	hits, err := s.Query(ctx, []float32{1, 0}, "u1", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Write(ctx, record("only", "u1", []float32{1, 0})))
	hits, err = s.Query(ctx, []float32{1, 0}, "u1", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.InDelta(t, 0, hits[0].Distance, 1e-5)
}

func TestChromemStoreDuplicate(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", 2)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, record("dup", "u1", []float32{1, 0})))
	err = s.Write(ctx, record("dup", "u1", []float32{0, 1}))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, s.Count())
}

func TestChromemStoreConcurrentDuplicateWrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Write(ctx, record("same", "u1", []float32{1, 0}))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrDuplicate)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, s.Count())
}

func TestChromemStoreDimension(t *testing.T) {
	s, err := NewChromemStore("", 3)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Write(context.Background(), record("x", "u1", []float32{1})), ErrDimensionMismatch)
	_, err = s.Query(context.Background(), []float32{1}, "u1", 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemStorePersistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(dir, 2)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, record("kept", "u1", []float32{0, 1})))

	reopened, err := NewChromemStore(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())
	assert.ErrorIs(t, reopened.Write(ctx, record("kept", "u1", []float32{0, 1})), ErrDuplicate)
}

type fakeStore struct {
	mu         sync.Mutex
	records    []models.MemoryRecord
	hits       []models.MemoryHit
	queryErr   error
	writeErr   error
	queryPanic bool
	writePanic bool
	closed     bool
	delay      time.Duration
}

func (f *fakeStore) Write(ctx context.Context, rec models.MemoryRecord) error {
	if f.writePanic {
		panic("write on closed index")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for _, r := range f.records {
		if r.ID == rec.ID {
			return ErrDuplicate
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) Query(context.Context, []float32, string, int) ([]models.MemoryHit, error) {
	if f.queryPanic {
		panic("index corrupted")
	}
	return f.hits, f.queryErr
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

func TestAdapterSearch(t *testing.T) {
	store := &fakeStore{hits: []models.MemoryHit{
		{ID: "near", Distance: 0.1},
		{ID: "far", Distance: 0.9},
	}}
	a := NewAdapter(store, AdapterConfig{}, metrics.NewCollector(), nil)

	hits, ok := a.Search(context.Background(), []float32{1}, "u1", 5)
	assert.True(t, ok)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].ID)
}

func TestAdapterSearchDegrades(t *testing.T) {
	tests := []struct {
		name   string
		store  Store
		emb    []float32
		wantOK bool
	}{
		{"no store", nil, []float32{1}, false},
		{"empty embedding", &fakeStore{hits: []models.MemoryHit{{ID: "x"}}}, nil, true},
		{"store error", &fakeStore{queryErr: errors.New("index offline")}, []float32{1}, false},
		{"store panic", &fakeStore{queryPanic: true}, []float32{1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.store, AdapterConfig{}, nil, nil)
			hits, ok := a.Search(context.Background(), tt.emb, "u1", 5)
			assert.Equal(t, tt.wantOK, ok)
			assert.NotNil(t, hits)
			assert.Empty(t, hits)
		})
	}
}

func TestAdapterWriteIdempotentPerSecond(t *testing.T) {
	store := &fakeStore{}
	collector := metrics.NewCollector()
	a := NewAdapter(store, AdapterConfig{}, collector, nil)

	ts := time.Unix(1700000000, 0)
	meta := models.MemoryMetadata{Sentiment: models.NeutralSentiment, Emotion: models.NeutralEmotion, Timestamp: ts}

	a.Write("u1", "first", []float32{1}, meta)
	a.Write("u1", "second", []float32{1}, meta)
	a.Wait()

	require.Len(t, store.records, 1)
	assert.Equal(t, "u1_1700000000", store.records[0].ID)

	snap := collector.Snapshot()
	require.NotNil(t, snap.MemoryWrite)
	assert.Equal(t, int64(2), snap.MemoryWrite.Count)
	assert.Equal(t, int64(1), snap.MemoryWrite.Failures)
}

func TestAdapterWriteFailureSwallowed(t *testing.T) {
	store := &fakeStore{writeErr: errors.New("disk full")}
	a := NewAdapter(store, AdapterConfig{}, nil, nil)

	a.Write("u1", "text", []float32{1}, models.MemoryMetadata{})
	a.Write("u1", "no embedding", nil, models.MemoryMetadata{})
	require.NoError(t, a.Close())
	assert.True(t, store.closed)
	assert.Empty(t, store.records)
}

func TestAdapterWriteDeadline(t *testing.T) {
	store := &fakeStore{delay: time.Second}
	a := NewAdapter(store, AdapterConfig{Timeout: 20 * time.Millisecond}, nil, nil)

	start := time.Now()
	a.Write("u1", "slow", []float32{1}, models.MemoryMetadata{})
	a.Wait()

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Empty(t, store.records)
}

func TestAdapterWritePanicSwallowed(t *testing.T) {
	store := &fakeStore{writePanic: true}
	collector := metrics.NewCollector()
	a := NewAdapter(store, AdapterConfig{}, collector, nil)

	a.Write("u1", "text", []float32{1}, models.MemoryMetadata{})
	require.NoError(t, a.Close())

	snap := collector.Snapshot()
	require.NotNil(t, snap.MemoryWrite)
	assert.Equal(t, int64(1), snap.MemoryWrite.Failures)
}

// stuckStore never returns until released and ignores its context.
type stuckStore struct {
	release chan struct{}
}

func (s *stuckStore) Write(context.Context, models.MemoryRecord) error {
	<-s.release
	return nil
}

func (s *stuckStore) Query(context.Context, []float32, string, int) ([]models.MemoryHit, error) {
	<-s.release
	return []models.MemoryHit{{ID: "late"}}, nil
}

func (s *stuckStore) Close() error { return nil }

func TestAdapterStoreIgnoringContext(t *testing.T) {
	store := &stuckStore{release: make(chan struct{})}
	t.Cleanup(func() { close(store.release) })
	a := NewAdapter(store, AdapterConfig{Timeout: 50 * time.Millisecond}, nil, nil)

	start := time.Now()
	hits, ok := a.Search(context.Background(), []float32{1}, "u1", 5)
	assert.False(t, ok)
	assert.Empty(t, hits)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	start = time.Now()
	a.Write("u1", "stuck", []float32{1}, models.MemoryMetadata{})
	require.NoError(t, a.Close())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuardCallerCancel(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard(ctx, time.Minute, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrStoreTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecordID(t *testing.T) {
	ts := time.Unix(1700000000, 999_000_000)
	assert.Equal(t, "u1_1700000000", RecordID("u1", ts))
	assert.Equal(t, fmt.Sprintf("alice_%d", ts.Unix()), RecordID("alice", ts))
}
