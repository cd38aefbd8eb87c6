// Command dsdcalc processes an archived spectrum series offline: it reads
// raw spectrum records from a JSON file, computes the gamma fit, physical
// moment, and (optionally) radar moment fields in parallel, and writes the
// results as a NetCDF dataset, a JSON document, or both.
//
// Usage:
//
//	go run ./cmd/dsdcalc \
//	  -input spectra.json \
//	  -strategy moments -orders 2,4,6 \
//	  -wavelength 31.86 -temperature 10 \
//	  -out-netcdf darwin_240426.nc -out-json darwin_240426.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"

	"github.com/couchcryptid/disdro-dsd-service/internal/adapter/netcdf"
	"github.com/couchcryptid/disdro-dsd-service/internal/adapter/scattering"
	"github.com/couchcryptid/disdro-dsd-service/internal/dsd"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
	"github.com/couchcryptid/disdro-dsd-service/internal/moments"
	"github.com/couchcryptid/disdro-dsd-service/internal/pipeline"
	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

type options struct {
	input       string
	strategy    string
	orders      string
	workers     int
	unsorted    bool
	radar       bool
	wavelength  float64
	temperature float64
	table       string
	outNetCDF   string
	outJSON     string
}

func main() {
	var opts options
	flag.StringVar(&opts.input, "input", "", "path to JSON file of raw spectrum records")
	flag.StringVar(&opts.strategy, "strategy", "moments", "gamma fit strategy: moments, constrained, or mle")
	flag.StringVar(&opts.orders, "orders", "2,4,6", "moment orders: 2,4,6 or 3,4,6")
	flag.IntVar(&opts.workers, "workers", runtime.NumCPU(), "worker pool size for field computation")
	flag.BoolVar(&opts.unsorted, "unsorted", false, "accept out-of-order sample timestamps")
	flag.BoolVar(&opts.radar, "radar", true, "compute polarimetric radar moments")
	flag.Float64Var(&opts.wavelength, "wavelength", 31.86, "radar wavelength in mm")
	flag.Float64Var(&opts.temperature, "temperature", 10, "drop temperature in °C")
	flag.StringVar(&opts.table, "scattering", "", "path to scattering table JSON (default: built-in Rayleigh)")
	flag.StringVar(&opts.outNetCDF, "out-netcdf", "", "write results to a NetCDF file")
	flag.StringVar(&opts.outJSON, "out-json", "", "write results to a JSON file")
	flag.Parse()

	if opts.input == "" || (opts.outNetCDF == "" && opts.outJSON == "") {
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(opts, logger); err != nil {
		logger.Error("dsdcalc failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	records, err := loadRecords(opts.input)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no spectrum records in input")
	}

	instrument := records[0].Instrument
	tbl, err := dsd.BinTableFor(instrument)
	if err != nil {
		return err
	}

	var copts []dsd.Option
	if opts.unsorted {
		copts = append(copts, dsd.WithUnsorted())
	}
	c := dsd.NewContainer(tbl, copts...)

	for i, rec := range records {
		if rec.Instrument != instrument {
			return fmt.Errorf("record %d: instrument %q differs from %q; one series per run", i, rec.Instrument, instrument)
		}
		if err := c.Append(rec.Spectrum()); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	logger.Info("spectra loaded", "instrument", instrument, "samples", c.Len())

	if err := registerFields(c, tbl, opts); err != nil {
		return err
	}

	computer := pipeline.NewParallelComputer(opts.workers, logger, nil)
	failures, err := computer.ComputeAll(context.Background(), c)
	if err != nil {
		return err
	}
	if len(failures) > 0 {
		logger.Warn("some samples failed", "count", len(failures))
	}

	if opts.outNetCDF != "" {
		if err := netcdf.Export(opts.outNetCDF, instrument, c); err != nil {
			return err
		}
		logger.Info("netcdf written", "path", opts.outNetCDF)
	}
	if opts.outJSON != "" {
		if err := writeJSON(opts.outJSON, instrument, c); err != nil {
			return err
		}
		logger.Info("json written", "path", opts.outJSON)
	}
	return nil
}

func loadRecords(path string) ([]dsd.RawSpectrumRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []dsd.RawSpectrumRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func registerFields(c *dsd.Container, tbl *dsd.BinTable, opts options) error {
	moments.NewCalculator(tbl).Register(c)

	orders, err := gamma.ParseMomentOrders(opts.orders)
	if err != nil {
		return err
	}
	strategy, err := gamma.ForMethod(gamma.Method(opts.strategy), orders)
	if err != nil {
		return err
	}
	gamma.Register(c, strategy)

	if !opts.radar {
		return nil
	}
	var table *scattering.Table
	if opts.table != "" {
		table, err = scattering.Load(opts.table)
		if err != nil {
			return err
		}
	} else {
		table = scattering.Rayleigh(opts.wavelength, opts.temperature, 10.0, 0.01)
	}
	radar.NewProcessor(tbl, table).Register(c)
	return nil
}

// writeJSON emits the computed field sequences keyed by field name, with a
// parallel time array. NaN positions (failed samples, undefined fits) become
// null since JSON has no NaN.
func writeJSON(path, instrument string, c *dsd.Container) error {
	out := map[string]any{"instrument": instrument}

	times := make([]string, c.Len())
	for i := 0; i < c.Len(); i++ {
		times[i] = c.Spectrum(i).Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	out["time"] = times

	for _, field := range c.RegisteredFields() {
		vals, err := c.GetField(string(field))
		if err != nil {
			return err
		}
		safe := make([]*float64, len(vals))
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			val := v
			safe[i] = &val
		}
		out[string(field)] = safe
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
