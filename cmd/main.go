package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/spotter/internal/adapters/http/api"
	"github.com/okian/spotter/internal/adapters/repository"
	app "github.com/okian/spotter/internal/app"
	"github.com/okian/spotter/internal/config"
	"github.com/okian/spotter/internal/domain/baseline"
	"github.com/okian/spotter/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// The default Go collectors would duplicate what the engine registry
	// already exposes.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	defer cleanup()

	svc := app.New(store,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.RefreshQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithSessionTTL(time.Duration(cfg.SessionTTLMS)*time.Millisecond),
		app.WithMissCooldown(time.Duration(cfg.MissCooldownMS)*time.Millisecond),
		app.WithMaxMisses(cfg.MaxMisses),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithKFactor(cfg.KFactor),
		app.WithFailureKFactor(cfg.FailureKFactor),
		app.WithBaselineOptions(
			baseline.WithDefaultBaseline(cfg.DefaultBaselineMS),
			baseline.WithImageLimit(cfg.BaselineImageLimit),
			baseline.WithGlobalLimit(cfg.BaselineGlobalLimit),
			baseline.WithMinSamples(cfg.BaselineMinSamples),
			baseline.WithCacheTTL(time.Duration(cfg.BaselineCacheTTLMS)*time.Millisecond),
		),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop(context.Background())

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, svc).Router(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// openStore selects Postgres when a database URL is configured and falls
// back to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info(ctx, "using in-memory store")
		return repository.NewMemStore(), func() {}, nil
	}

	pg, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info(ctx, "using postgres store")
	return pg, pg.Close, nil
}

// startServiceMetricsUpdater refreshes the service-level gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the tracked-player and queue gauges.
			_ = svc.GetStats()
		}
	}
}
