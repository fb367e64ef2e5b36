package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "RESUMERANK_"
	envConfig  = envPrefix + "CONFIG"
	envDotFile = envPrefix + "ENV_FILE"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if RESUMERANK_CONFIG is set
//  3. env (prefix RESUMERANK_), after a .env file has been merged into the process env
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RESUMERANK_QUEUE_SIZE -> queue_size. Underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv merges a .env file into the process env without overriding set variables.
// A missing file is not an error.
func loadDotEnv() error {
	path := os.Getenv(envDotFile)
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func normalize(c *Config) {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.AnalysisURL = strings.TrimRight(strings.TrimSpace(c.AnalysisURL), "/")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.JWTSecret == "":
		return invalid("jwt_secret must be set")
	case c.AnalyzeTimeoutMS <= 0 || c.ProbeTimeoutMS <= 0 || c.ProbeIntervalMS <= 0:
		return invalid("analyze_timeout_ms, probe_timeout_ms and probe_interval_ms must be positive")
	case c.MaxFileBytes <= 0 || c.MaxBatchFiles <= 0:
		return invalid("max_file_bytes and max_batch_files must be positive")
	case c.QueueSize <= 0 || c.MaxTrackedBatches <= 0 || c.DedupeSize <= 0:
		return invalid("queue_size, max_tracked_batches and dedupe_size must be positive")
	case c.RateLimit < 0:
		return invalid("rate_limit must not be negative")
	case c.PresignExpiryMinutes <= 0:
		return invalid("presign_expiry_minutes must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return invalid("log_format %q is not json or text", c.LogFormat)
	}

	u, err := url.Parse(c.AnalysisURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("analysis_url %q must be an absolute http(s) URL", c.AnalysisURL)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMySQL:
		if c.MySQLDSN == "" {
			return invalid("mysql_dsn is required for store_driver mysql")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return invalid("supabase_url and supabase_key are required for store_driver supabase")
		}
	default:
		return invalid("store_driver %q is not memory, mysql or supabase", c.StoreDriver)
	}

	switch c.StorageDriver {
	case StorageMemory:
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return invalid("minio_endpoint and minio_bucket are required for storage_driver minio")
		}
	default:
		return invalid("storage_driver %q is not memory or minio", c.StorageDriver)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
