package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/observability"
)

// SpectrumFailure records one per-spectrum computation failure from a
// parallel field run. The failed position carries NaN in the published
// sequence; the failure record preserves the cause.
type SpectrumFailure struct {
	Index     int
	Timestamp time.Time
	Field     dsd.Field
	Err       error
}

// ParallelComputer fills a container's derived field sequences using a fixed
// worker pool. Workers split the spectrum index range per field, write into
// disjoint positions of a shared slice, and publish the finished sequence
// with StoreField, so field reads after a run hit the cache.
type ParallelComputer struct {
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewParallelComputer creates a computer with the given pool size.
func NewParallelComputer(workers int, logger *slog.Logger, metrics *observability.Metrics) *ParallelComputer {
	if workers < 1 {
		workers = 1
	}
	return &ParallelComputer{workers: workers, logger: logger, metrics: metrics}
}

// ComputeAll computes every registered derived field of the container and
// returns the per-spectrum failures. A failing spectrum yields NaN at its
// position and does not stop the run; the remaining positions are still
// computed. Cancellation via ctx stops scheduling new spectra and returns
// the failures collected so far along with ctx.Err().
func (p *ParallelComputer) ComputeAll(ctx context.Context, c *dsd.Container) ([]SpectrumFailure, error) {
	var failures []SpectrumFailure
	for _, field := range c.RegisteredFields() {
		fieldFailures, err := p.ComputeField(ctx, c, field)
		failures = append(failures, fieldFailures...)
		if err != nil {
			return failures, err
		}
	}
	return failures, nil
}

// ComputeField computes one derived field sequence in parallel and publishes
// it into the container's cache.
func (p *ParallelComputer) ComputeField(ctx context.Context, c *dsd.Container, field dsd.Field) ([]SpectrumFailure, error) {
	n := c.Len()
	vals := make([]float64, n)

	start := time.Now()
	indexes := make(chan int)

	var mu sync.Mutex
	var failures []SpectrumFailure

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				v, err := c.FieldAt(field, i)
				if err != nil {
					vals[i] = math.NaN()
					mu.Lock()
					failures = append(failures, SpectrumFailure{
						Index:     i,
						Timestamp: c.Spectrum(i).Timestamp,
						Field:     field,
						Err:       err,
					})
					mu.Unlock()
					continue
				}
				vals[i] = v
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	if ctxErr != nil {
		return failures, ctxErr
	}

	for _, f := range failures {
		p.logger.Warn("field computation failed for spectrum",
			"field", string(f.Field), "index", f.Index,
			"timestamp", f.Timestamp, "error", f.Err)
	}
	if p.metrics != nil {
		p.metrics.FieldComputeDuration.WithLabelValues(string(field)).Observe(time.Since(start).Seconds())
	}

	if err := c.StoreField(field, vals); err != nil {
		return failures, err
	}
	return failures, nil
}
