package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/disdro-dsd-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disdro-dsd-service/internal/adapter/kafka"
	"github.com/couchcryptid/disdro-dsd-service/internal/adapter/scattering"
	"github.com/couchcryptid/disdro-dsd-service/internal/config"
	"github.com/couchcryptid/disdro-dsd-service/internal/gamma"
	"github.com/couchcryptid/disdro-dsd-service/internal/observability"
	"github.com/couchcryptid/disdro-dsd-service/internal/pipeline"
	"github.com/couchcryptid/disdro-dsd-service/internal/radar"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	orders, err := gamma.ParseMomentOrders(cfg.MomentOrders)
	if err != nil {
		logger.Error("invalid moment orders", "error", err)
		os.Exit(1)
	}
	strategy, err := gamma.ForMethod(gamma.Method(cfg.FitStrategy), orders)
	if err != nil {
		logger.Error("invalid fit strategy", "error", err)
		os.Exit(1)
	}

	// Scattering provider (feature-flagged via RADAR_ENABLED / SCATTERING_TABLE).
	var provider radar.ScatteringProvider
	if cfg.RadarEnabled {
		provider, err = buildProvider(cfg)
		if err != nil {
			logger.Error("failed to build scattering provider", "error", err)
			os.Exit(1)
		}
		logger.Info("radar moments enabled",
			"wavelength_mm", provider.WavelengthMM(),
			"temperature_c", provider.TemperatureC(),
			"table", cfg.ScatteringTablePath)
	} else {
		logger.Info("radar moments disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(strategy, provider, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start processing pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildProvider loads the configured scattering table, falling back to the
// built-in Rayleigh approximation when none is configured, and wraps it in
// an LRU cache.
func buildProvider(cfg *config.Config) (radar.ScatteringProvider, error) {
	var table *scattering.Table
	if cfg.ScatteringTablePath != "" {
		var err error
		table, err = scattering.Load(cfg.ScatteringTablePath)
		if err != nil {
			return nil, err
		}
	} else {
		table = scattering.Rayleigh(cfg.WavelengthMM, cfg.TemperatureC, 10.0, 0.01)
	}
	return scattering.NewCachedProvider(table, cfg.ScatteringCacheSize), nil
}
