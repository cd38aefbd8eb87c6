package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
	"github.com/couchcryptid/disdro-dsd-service/internal/moments"
	"github.com/couchcryptid/disdro-dsd-service/internal/observability"
	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

// instrumentMachinery bundles the per-bin-table computation stages for one
// instrument. Built once per instrument name and reused across messages.
type instrumentMachinery struct {
	table      *dsd.BinTable
	calculator *moments.Calculator
	processor  *radar.Processor
}

// DSDTransformer implements Transformer: it parses raw spectrum records,
// fits the gamma model, integrates the physical moments, and, when a
// scattering provider is configured, the polarimetric radar moments.
type DSDTransformer struct {
	strategy gamma.Strategy
	provider radar.ScatteringProvider // nil disables radar moments
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu          sync.Mutex
	instruments map[string]*instrumentMachinery
}

// NewTransformer creates a DSDTransformer. Pass a nil provider to disable
// radar moment computation.
func NewTransformer(strategy gamma.Strategy, provider radar.ScatteringProvider, logger *slog.Logger, metrics *observability.Metrics) *DSDTransformer {
	return &DSDTransformer{
		strategy:    strategy,
		provider:    provider,
		logger:      logger,
		metrics:     metrics,
		instruments: make(map[string]*instrumentMachinery),
	}
}

// forInstrument returns the memoized machinery for an instrument name,
// building it on first use.
func (t *DSDTransformer) forInstrument(instrument string) (*instrumentMachinery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.instruments[instrument]; ok {
		return m, nil
	}

	table, err := dsd.BinTableFor(instrument)
	if err != nil {
		return nil, err
	}

	m := &instrumentMachinery{
		table:      table,
		calculator: moments.NewCalculator(table),
	}
	if t.provider != nil {
		m.processor = radar.NewProcessor(table, t.provider)
	}
	t.instruments[instrument] = m
	return m, nil
}

func (t *DSDTransformer) Transform(_ context.Context, raw dsd.RawEvent) (dsd.ProductRecord, error) {
	rec, err := dsd.ParseRawSpectrum(raw.Value)
	if err != nil {
		return dsd.ProductRecord{}, err
	}

	m, err := t.forInstrument(rec.Instrument)
	if err != nil {
		return dsd.ProductRecord{}, err
	}

	if len(rec.Nd) != m.table.Len() {
		return dsd.ProductRecord{}, &dsd.ShapeError{Got: len(rec.Nd), Want: m.table.Len()}
	}

	s := rec.Spectrum().Sanitize()

	fit := t.strategy.Fit(m.table, s)
	if !fit.Defined {
		t.metrics.UndefinedFits.Inc()
	}

	out := dsd.ProductRecord{
		Instrument: rec.Instrument,
		Time:       rec.Time,
		RainRate:   m.calculator.RainRate(s),
		LWC:        m.calculator.LWC(s),
		D0:         m.calculator.D0(s),
		Nw:         m.calculator.Nw(s),
		Nt:         m.calculator.Nt(s),
		Dm:         m.calculator.Dm(s),
		Dmax:       m.calculator.Dmax(s),
		Fit:        gamma.Wire(fit),
	}

	if m.processor != nil {
		rm, err := m.processor.Wire(s)
		if err != nil {
			var lookupErr *radar.ScatteringLookupError
			if errors.As(err, &lookupErr) {
				t.metrics.ScatteringLookupFails.Inc()
			}
			return dsd.ProductRecord{}, fmt.Errorf("radar moments for %s sample at %s: %w",
				rec.Instrument, rec.Time.Format("2006-01-02T15:04:05Z07:00"), err)
		}
		out.Radar = rm
	}

	t.metrics.SpectraProcessed.WithLabelValues(rec.Instrument).Inc()
	out.Stamp()
	return out, nil
}
