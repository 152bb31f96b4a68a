// Package config handles configuration loading from environment variables and
// an optional YAML config file. Environment variables take precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string. Empty selects the in-memory store, which is
	// only suitable for a single-process deployment.
	DatabaseURL string

	// HTTP server port for the controller
	HTTPPort int

	// Worker identity used in job leases. Empty means a random ID per start.
	WorkerID string

	// Baseline delay between dispatch passes
	TickInterval time.Duration

	// How long a claimed job stays exclusive to one worker
	LeaseDuration time.Duration

	// How long a cached agent card is trusted before refetch
	CardTTL time.Duration

	// Simultaneous outbound invocations per dispatch pass
	DispatchConcurrency int

	// Maximum due jobs pulled per dispatch pass
	MaxDueBatch int

	// Retry ceiling for jobs created without an explicit one
	DefaultMaxRetries int

	// Controller request rate limit (requests per second) and burst
	RateLimit float64
	RateBurst int

	// OTLP endpoint for trace export. Empty disables tracing export.
	OTelEndpoint string

	// Payment network identifier passed to the payment provider
	PaymentNetwork string
}

// Load reads configuration from the environment and, when configFile is
// non-empty, a YAML file. Environment variables override file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_port", 7171)
	v.SetDefault("tick_interval", 5*time.Second)
	v.SetDefault("lease_duration", 60*time.Second)
	v.SetDefault("card_ttl", 10*time.Minute)
	v.SetDefault("dispatch_concurrency", 5)
	v.SetDefault("max_due_batch", 50)
	v.SetDefault("default_max_retries", 3)
	v.SetDefault("rate_limit", 50.0)
	v.SetDefault("rate_burst", 100)

	// Aliases for the conventional variable names.
	v.BindEnv("http_port", "PORT", "HTTP_PORT")
	v.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_ENDPOINT")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:         v.GetString("database_url"),
		HTTPPort:            v.GetInt("http_port"),
		WorkerID:            v.GetString("worker_id"),
		TickInterval:        v.GetDuration("tick_interval"),
		LeaseDuration:       v.GetDuration("lease_duration"),
		CardTTL:             v.GetDuration("card_ttl"),
		DispatchConcurrency: v.GetInt("dispatch_concurrency"),
		MaxDueBatch:         v.GetInt("max_due_batch"),
		DefaultMaxRetries:   v.GetInt("default_max_retries"),
		RateLimit:           v.GetFloat64("rate_limit"),
		RateBurst:           v.GetInt("rate_burst"),
		OTelEndpoint:        v.GetString("otel_endpoint"),
		PaymentNetwork:      v.GetString("payment_network"),
	}

	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick_interval must be positive, got %v", cfg.TickInterval)
	}
	if cfg.LeaseDuration <= 0 {
		return nil, fmt.Errorf("lease_duration must be positive, got %v", cfg.LeaseDuration)
	}
	if cfg.DispatchConcurrency <= 0 {
		return nil, fmt.Errorf("dispatch_concurrency must be positive, got %d", cfg.DispatchConcurrency)
	}
	if cfg.DefaultMaxRetries < 0 {
		return nil, fmt.Errorf("default_max_retries must not be negative, got %d", cfg.DefaultMaxRetries)
	}

	return cfg, nil
}
