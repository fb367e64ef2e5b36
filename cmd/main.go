package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/resumerank/internal/adapters/analysis"
	"github.com/okian/resumerank/internal/adapters/http/api"
	"github.com/okian/resumerank/internal/adapters/http/swagger"
	"github.com/okian/resumerank/internal/adapters/notify"
	"github.com/okian/resumerank/internal/adapters/repository"
	"github.com/okian/resumerank/internal/adapters/storage"
	app "github.com/okian/resumerank/internal/app"
	"github.com/okian/resumerank/internal/config"
	"github.com/okian/resumerank/pkg/logger"
)

// HTTP server timeout constants. Uploads and analysis take long, so writes get a
// generous budget.
const (
	readTimeout            = 60 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// The custom registry carries our own system metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger isn't configured yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, logger.Get()); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains HTTP and stops the service.
func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	svc, err := buildService(ctx, cfg, l)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, cfg, svc, l),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	l.Info(ctx, "server stopped")
	return nil
}

// newRouter mounts the API and the docs on a fresh gin engine.
func newRouter(ctx context.Context, cfg *config.Config, svc api.Dependencies, l logger.Logger) *gin.Engine {
	r := gin.New()
	api.NewServer(svc,
		api.WithJWTSecret(cfg.JWTSecret),
		api.WithMaxUploadBytes(cfg.MaxFileBytes*int64(cfg.MaxBatchFiles)),
		api.WithRateLimit(cfg.RateLimit, time.Minute),
		api.WithLogger(l.Named("http")),
	).Register(ctx, r)
	swagger.Register(r)
	return r
}

// buildService selects the configured backends and builds the service around them.
func buildService(ctx context.Context, cfg *config.Config, l logger.Logger) (*app.Service, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := openStorage(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifier, err := openNotifier(cfg, l)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := analysis.New(cfg.AnalysisURL,
		analysis.WithAnalyzeTimeout(cfg.AnalyzeTimeout()),
		analysis.WithProbeTimeout(cfg.ProbeTimeout()),
		analysis.WithLogger(l.Named("analysis")),
	)
	l.Info(ctx, "backends selected",
		logger.String("store", cfg.StoreDriver),
		logger.String("storage", cfg.StorageDriver),
		logger.Bool("notifications", cfg.AMQPURL != ""),
		logger.String("analysis_url", cfg.AnalysisURL),
	)

	return app.New(
		app.WithLogger(l),
		app.WithStore(store),
		app.WithStorage(blobs),
		app.WithAnalysis(client),
		app.WithNotifier(notifier),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxTrackedBatches(cfg.MaxTrackedBatches),
		app.WithProbeInterval(cfg.ProbeInterval()),
		app.WithMaxFileBytes(cfg.MaxFileBytes),
		app.WithMaxBatchFiles(cfg.MaxBatchFiles),
	), nil
}

func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		s, err := repository.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		return s, nil
	case config.StoreSupabase:
		s, err := repository.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, fmt.Errorf("open supabase store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	if cfg.StorageDriver != config.StorageMinio {
		return storage.NewMemory(), nil
	}
	m, err := storage.NewMinio(storage.MinioConfig{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		Region:        cfg.MinioRegion,
		PresignExpiry: cfg.PresignExpiry(),
	})
	if err != nil {
		return nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinioBucket, err)
	}
	return m, nil
}

func openNotifier(cfg *config.Config, l logger.Logger) (notify.Publisher, error) {
	if cfg.AMQPURL == "" {
		return notify.Nop{}, nil
	}
	p, err := notify.DialAMQP(cfg.AMQPURL,
		notify.WithQueue(cfg.AMQPQueue),
		notify.WithLogger(l.Named("notify")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return p, nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
