package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/observability"
	"github.com/couchcryptid/disdro-dsd-service/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]dsd.RawEvent
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]dsd.RawEvent, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

// mockTransformer fails any event whose key is "poison".
type mockTransformer struct{}

func (mockTransformer) Transform(_ context.Context, raw dsd.RawEvent) (dsd.ProductRecord, error) {
	if string(raw.Key) == "poison" {
		return dsd.ProductRecord{}, errors.New("bad payload")
	}
	return dsd.ProductRecord{Instrument: "jwd", Time: raw.Timestamp}, nil
}

type mockLoader struct {
	loaded []dsd.ProductRecord
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, records []dsd.ProductRecord) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, records...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := dsd.RawEvent{Key: []byte("a"), Timestamp: time.Now()}

	ext := &mockExtractor{batches: [][]dsd.RawEvent{{raw}}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, ldr.loaded, 1)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches — will block
	ldr := &mockLoader{}
	p := pipeline.New(ext, mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	err := p.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_PoisonPillSkipped(t *testing.T) {
	var poisonCommitted, goodCommitted atomic.Bool
	poison := dsd.RawEvent{Key: []byte("poison"), Commit: func(context.Context) error {
		poisonCommitted.Store(true)
		return nil
	}}
	good := dsd.RawEvent{Key: []byte("good"), Commit: func(context.Context) error {
		goodCommitted.Store(true)
		return nil
	}}

	ext := &mockExtractor{batches: [][]dsd.RawEvent{{poison, good}}}
	ldr := &mockLoader{}
	p := pipeline.New(ext, mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)

	assert.Len(t, ldr.loaded, 1, "only the valid record is loaded")
	assert.True(t, poisonCommitted.Load(), "poison pill offset is committed so it is not redelivered")
	assert.True(t, goodCommitted.Load())
}

func TestPipeline_Run_LoadFailureSkipsCommit(t *testing.T) {
	var committed atomic.Bool
	raw := dsd.RawEvent{Key: []byte("a"), Commit: func(context.Context) error {
		committed.Store(true)
		return nil
	}}

	ext := &mockExtractor{batches: [][]dsd.RawEvent{{raw}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}
	p := pipeline.New(ext, mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	require.NoError(t, err)

	assert.False(t, committed.Load(), "offsets stay uncommitted so the broker redelivers")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_CheckReadinessBeforeFirstBatch(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	err := p.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not processed any spectra")
}
