package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/belay/internal/adapters/auth"
	"github.com/okian/belay/internal/adapters/feed"
	"github.com/okian/belay/internal/adapters/http/api"
	"github.com/okian/belay/internal/adapters/http/swagger"
	"github.com/okian/belay/internal/adapters/repository"
	"github.com/okian/belay/internal/adapters/roster"
	app "github.com/okian/belay/internal/app"
	"github.com/okian/belay/internal/config"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// The service exposes its own registry; drop the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Configure(os.Stdout, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to configure logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "belay stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

// run starts the contest service and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, hub, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	go hub.Run(ctx)

	if err := svc.Start(ctx); err != nil {
		svc.Stop()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, hub),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the score store, the display feeds, the roster and the
// operator gate from cfg and hands them to a new service.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, *feed.Hub, error) {
	var store scoring.Store = repository.NewMemoryStore()
	if cfg.ScoresDB != "" {
		db, err := repository.OpenSQLite(ctx, cfg.ScoresDB, repository.WithLogger(log.Named("scores")))
		if err != nil {
			return nil, nil, fmt.Errorf("open scores db: %w", err)
		}
		store = db
	}
	closeStore := func() {
		if c, ok := store.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}

	gate, err := auth.NewGate(cfg.AdminPasswordHash, log.Named("auth"))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if !gate.Enabled() {
		log.Warn(ctx, "no admin_password_hash configured; reset is unprotected")
	}

	hub := feed.NewHub(feed.WithHubLogger(log.Named("feed")))
	publishers := feed.Fanout{hub}
	if cfg.NATSURL != "" {
		natsCfg := feed.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Subject = cfg.NATSSubject
		pub, err := feed.NewNATSPublisher(natsCfg, log.Named("nats"))
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		publishers = append(publishers, pub)
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithQueueSize(cfg.CommandQueueSize),
		app.WithDedupeSize(cfg.SubmissionCacheSize),
		app.WithStore(store),
		app.WithPublisher(publishers),
		app.WithGate(gate),
		app.WithDurations(clock.Durations{
			Preview:     time.Duration(cfg.PreviewSeconds) * time.Second,
			ActiveRound: time.Duration(cfg.RouteSeconds) * time.Second,
			Transit:     time.Duration(cfg.TransitSeconds) * time.Second,
		}),
		app.WithMinTickDelay(time.Duration(cfg.MinTickDelayMS) * time.Millisecond),
		app.WithContestDefaults(cfg.Routes, cfg.PauseMinutes),
		app.WithBootContest(app.SetupRequest{Type: cfg.ContestType, Routes: cfg.Routes, PauseMinutes: cfg.PauseMinutes}),
	}
	if cfg.CompetitorsFile != "" {
		opts = append(opts, app.WithRoster(roster.NewCSVStore(cfg.CompetitorsFile, log.Named("roster"))))
	}
	return app.New(opts...), hub, nil
}

// newMux registers the API, the docs and the display feed.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, hub *feed.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithFeed(hub),
		api.WithMaxRankingLimit(cfg.MaxRankingLimit),
	).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the queue gauges between commands.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
}
