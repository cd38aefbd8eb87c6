package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// DSD estimation configuration.
	FitStrategy     string // "moments", "constrained", or "mle"
	MomentOrders    string // "2,4,6" or "3,4,6"
	Workers         int
	StrictTimeOrder bool

	// Radar moment configuration.
	RadarEnabled        bool
	WavelengthMM        float64
	TemperatureC        float64
	ScatteringTablePath string // empty selects the built-in Rayleigh table
	ScatteringCacheSize int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	wavelength, err := parsePositiveFloat("WAVELENGTH_MM", 31.86) // X band
	if err != nil {
		return nil, err
	}

	temperature, err := parseFloat("TEMPERATURE_C", 10)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("SCATTERING_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-dsd-spectra"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "dsd-derived-products"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "disdro-dsd"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		FitStrategy:     sharedcfg.EnvOrDefault("FIT_STRATEGY", "moments"),
		MomentOrders:    sharedcfg.EnvOrDefault("MOMENT_ORDERS", "2,4,6"),
		Workers:         workers,
		StrictTimeOrder: sharedcfg.EnvOrDefault("STRICT_TIME_ORDER", "true") == "true",

		RadarEnabled:        sharedcfg.EnvOrDefault("RADAR_ENABLED", "true") == "true",
		WavelengthMM:        wavelength,
		TemperatureC:        temperature,
		ScatteringTablePath: os.Getenv("SCATTERING_TABLE"),
		ScatteringCacheSize: cacheSize,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch cfg.FitStrategy {
	case "moments", "constrained", "mle":
	default:
		return nil, fmt.Errorf("invalid FIT_STRATEGY %q", cfg.FitStrategy)
	}
	switch cfg.MomentOrders {
	case "2,4,6", "3,4,6":
	default:
		return nil, fmt.Errorf("invalid MOMENT_ORDERS %q", cfg.MomentOrders)
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	v, err := parseFloat(key, def)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}
