// Package config defines service configuration and how it is loaded.
//
// Conventions:
// - Flat snake_case keys, the same in YAML files and RESUMERANK_* env vars.
// - New(ctx) returns the defaults; Load layers file and env on top and validates.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"time"
)

// Backend selectors.
const (
	StoreMemory    = "memory"
	StoreMySQL     = "mysql"
	StoreSupabase  = "supabase"
	StorageMemory  = "memory"
	StorageMinio   = "minio"
	maxProbeMillis = 3000
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// AnalysisURL is the base URL of the remote analysis service.
	AnalysisURL      string `koanf:"analysis_url"`
	AnalyzeTimeoutMS int    `koanf:"analyze_timeout_ms"`
	ProbeTimeoutMS   int    `koanf:"probe_timeout_ms"`
	ProbeIntervalMS  int    `koanf:"probe_interval_ms"`

	// MaxFileBytes caps a single resume; MaxBatchFiles caps files per batch.
	MaxFileBytes  int64 `koanf:"max_file_bytes"`
	MaxBatchFiles int   `koanf:"max_batch_files"`

	// QueueSize bounds the batches waiting for the worker.
	QueueSize         int `koanf:"queue_size"`
	MaxTrackedBatches int `koanf:"max_tracked_batches"`
	// DedupeSize sets the capacity of the idempotency key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver selects the record store: memory, mysql or supabase.
	StoreDriver string `koanf:"store_driver"`
	MySQLDSN    string `koanf:"mysql_dsn"`
	SupabaseURL string `koanf:"supabase_url"`
	SupabaseKey string `koanf:"supabase_key"`

	// StorageDriver selects the blob store: memory or minio.
	StorageDriver        string `koanf:"storage_driver"`
	MinioEndpoint        string `koanf:"minio_endpoint"`
	MinioAccessKey       string `koanf:"minio_access_key"`
	MinioSecretKey       string `koanf:"minio_secret_key"`
	MinioBucket          string `koanf:"minio_bucket"`
	MinioUseSSL          bool   `koanf:"minio_use_ssl"`
	MinioRegion          string `koanf:"minio_region"`
	PresignExpiryMinutes int    `koanf:"presign_expiry_minutes"`

	// AMQPURL enables outcome events when set.
	AMQPURL   string `koanf:"amqp_url"`
	AMQPQueue string `koanf:"amqp_queue"`

	// JWTSecret verifies bearer tokens. Required.
	JWTSecret string `koanf:"jwt_secret"`
	// RateLimit caps batch submissions per client per minute; 0 disables it.
	RateLimit int `koanf:"rate_limit"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "json",
		Addr:                 ":9080",
		AnalysisURL:          "http://localhost:8000",
		AnalyzeTimeoutMS:     120_000,
		ProbeTimeoutMS:       3_000,
		ProbeIntervalMS:      8_000,
		MaxFileBytes:         10 << 20,
		MaxBatchFiles:        50,
		QueueSize:            16,
		MaxTrackedBatches:    256,
		DedupeSize:           10_000,
		StoreDriver:          StoreMemory,
		StorageDriver:        StorageMemory,
		MinioBucket:          "resumes",
		MinioRegion:          "us-east-1",
		PresignExpiryMinutes: 15,
		AMQPQueue:            "resume_outcomes",
		RateLimit:            30,
	}
}

// AnalyzeTimeout is the per-call budget of an analysis request.
func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.AnalyzeTimeoutMS) * time.Millisecond
}

// ProbeTimeout is the health probe budget, never above three seconds.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(min(c.ProbeTimeoutMS, maxProbeMillis)) * time.Millisecond
}

// ProbeInterval is the delay between availability probes.
func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalMS) * time.Millisecond
}

// PresignExpiry is the lifetime of download URLs.
func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.PresignExpiryMinutes) * time.Minute
}
