package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/resumerank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		_ = os.Setenv("RESUMERANK_JWT_SECRET", "secret")
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "secret")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RESUMERANK_ADDR", ":8080")
			_ = os.Setenv("RESUMERANK_QUEUE_SIZE", "4")
			_ = os.Setenv("RESUMERANK_MAX_FILE_BYTES", "1048576")
			_ = os.Setenv("RESUMERANK_MINIO_USE_SSL", "true")
			_ = os.Setenv("RESUMERANK_ANALYSIS_URL", "http://analysis:8000/")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 4)
				convey.So(cfg.MaxFileBytes, convey.ShouldEqual, 1<<20)
				convey.So(cfg.MinioUseSSL, convey.ShouldBeTrue)
				convey.So(cfg.AnalysisURL, convey.ShouldEqual, "http://analysis:8000")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 8
store_driver: mysql
mysql_dsn: "user:pass@tcp(localhost:3306)/resumes?parseTime=true"
storage_driver: MINIO
minio_endpoint: "localhost:9000"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RESUMERANK_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 8)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMySQL)
				convey.So(cfg.StorageDriver, convey.ShouldEqual, config.StorageMinio)
				convey.So(cfg.MinioBucket, convey.ShouldEqual, "resumes")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_size: 8
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RESUMERANK_CONFIG", tmpFile)
			_ = os.Setenv("RESUMERANK_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When a .env file is present", func() {
			tmpFile := createTempConfigFile("RESUMERANK_RATE_LIMIT=5\nRESUMERANK_JWT_SECRET=from-dotenv\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RESUMERANK_ENV_FILE", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values fill unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.RateLimit, convey.ShouldEqual, 5)
				convey.So(cfg.JWTSecret, convey.ShouldEqual, "secret")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("RESUMERANK_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("RESUMERANK_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("RESUMERANK_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		_ = os.Setenv("RESUMERANK_JWT_SECRET", "secret")
		defer clearConfigEnvVars()

		cases := []struct {
			name, key, value, want string
		}{
			{"missing jwt secret", "RESUMERANK_JWT_SECRET", "", "jwt_secret"},
			{"unknown log level", "RESUMERANK_LOG_LEVEL", "loud", "log_level"},
			{"unknown log format", "RESUMERANK_LOG_FORMAT", "xml", "log_format"},
			{"relative analysis url", "RESUMERANK_ANALYSIS_URL", "analysis:8000", "analysis_url"},
			{"zero queue", "RESUMERANK_QUEUE_SIZE", "0", "queue_size"},
			{"negative rate limit", "RESUMERANK_RATE_LIMIT", "-1", "rate_limit"},
			{"zero probe interval", "RESUMERANK_PROBE_INTERVAL_MS", "0", "probe_interval_ms"},
			{"mysql without dsn", "RESUMERANK_STORE_DRIVER", "mysql", "mysql_dsn"},
			{"supabase without key", "RESUMERANK_STORE_DRIVER", "supabase", "supabase_url"},
			{"unknown store", "RESUMERANK_STORE_DRIVER", "redis", "store_driver"},
			{"minio without endpoint", "RESUMERANK_STORAGE_DRIVER", "minio", "minio_endpoint"},
			{"unknown storage", "RESUMERANK_STORAGE_DRIVER", "s3", "storage_driver"},
		}
		for _, tc := range cases {
			convey.Convey("When the config has a "+tc.name, func() {
				_ = os.Setenv(tc.key, tc.value)

				cfg, err := config.Load(ctx)

				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "RESUMERANK_") {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "resumerank-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
