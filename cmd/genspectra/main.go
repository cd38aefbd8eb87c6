// Command genspectra generates synthetic drop size distribution fixtures for
// the service and CLI test suites. It renders a gamma DSD onto a real
// instrument bin table, modulates it through a shower, and runs the actual
// transformer so the product fixture matches real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genspectra \
//	  -instrument jwd -samples 120 \
//	  -raw-out data/mock/jwd_shower_raw.json \
//	  -products-out data/mock/jwd_shower_products.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
	"github.com/couchcryptid/disdro-dsd-service/internal/observability"
	"github.com/couchcryptid/disdro-dsd-service/internal/pipeline"
)

var startTime = time.Date(2026, time.February, 10, 14, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	instrument := flag.String("instrument", "jwd", "instrument bin table: parsivel, 2dvd, or jwd")
	samples := flag.Int("samples", 120, "number of one-minute samples to generate")
	n0 := flag.Float64("n0", 8000, "gamma intercept at peak intensity (m⁻³ mm⁻¹⁻ᵘ)")
	mu := flag.Float64("mu", 2.0, "gamma shape")
	lambda := flag.Float64("lambda", 2.5, "gamma slope at peak intensity (mm⁻¹)")
	noise := flag.Float64("noise", 0.05, "per-bin multiplicative noise fraction")
	seed := flag.Int64("seed", 1, "RNG seed for reproducible fixtures")
	rawOut := flag.String("raw-out", "", "output path for raw spectrum JSON fixture")
	productsOut := flag.String("products-out", "", "output path for transformed product JSON fixture")
	flag.Parse()

	if *rawOut == "" || *productsOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -products-out")
	}
	if *samples < 3 {
		return fmt.Errorf("need at least 3 samples for a shower with dry bookends")
	}

	table, err := dsd.BinTableFor(*instrument)
	if err != nil {
		return err
	}

	// Set a fixed clock for reproducible processed_at timestamps.
	dsd.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.February, 11, 6, 0, 0, 0, time.UTC),
	))
	defer dsd.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	records := make([]dsd.RawSpectrumRecord, 0, *samples)
	for i := 0; i < *samples; i++ {
		rec := dsd.RawSpectrumRecord{
			Instrument: *instrument,
			Time:       startTime.Add(time.Duration(i) * time.Minute),
			Nd:         make([]float64, table.Len()),
		}
		// Dry bookends, a sinusoidal ramp through the shower between them.
		if i > 0 && i < *samples-1 {
			intensity := math.Sin(math.Pi * float64(i) / float64(*samples-1))
			for b := 0; b < table.Len(); b++ {
				d := table.Bin(b).CenterMM
				jitter := 1 + *noise*(2*rng.Float64()-1)
				rec.Nd[b] = intensity * *n0 * math.Pow(d, *mu) * math.Exp(-*lambda*d) * jitter
			}
		}
		records = append(records, rec)
	}

	// Run the actual transformer so the product fixture tracks pipeline behavior.
	strategy, err := gamma.ForMethod(gamma.MethodMoments, gamma.MomentOrders{2, 4, 6})
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	transformer := pipeline.NewTransformer(strategy, nil, logger, observability.NewMetricsForTesting())

	products := make([]dsd.ProductRecord, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal spectrum: %w", err)
		}
		product, err := transformer.Transform(context.Background(), dsd.RawEvent{Value: payload, Timestamp: rec.Time})
		if err != nil {
			return fmt.Errorf("transform spectrum at %s: %w", rec.Time.Format(time.RFC3339), err)
		}
		products = append(products, product)
	}

	if err := writeJSON(*rawOut, records); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s (%d spectra)", *rawOut, len(records))

	if err := writeJSON(*productsOut, products); err != nil {
		return fmt.Errorf("writing product fixture: %w", err)
	}
	log.Printf("wrote product fixture: %s", *productsOut)

	printStats(products)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(products []dsd.ProductRecord) {
	var rainy, dry int
	var peakRate, totalRate float64
	var peakAt time.Time
	for _, p := range products {
		if p.Fit.Mu == nil {
			dry++
			continue
		}
		rainy++
		totalRate += p.RainRate
		if p.RainRate > peakRate {
			peakRate = p.RainRate
			peakAt = p.Time
		}
	}
	log.Printf("samples: %d rainy, %d dry", rainy, dry)
	if rainy > 0 {
		log.Printf("rain rate: peak %.2f mm/h at %s, mean %.2f mm/h",
			peakRate, peakAt.Format(time.RFC3339), totalRate/float64(rainy))
	}
}
