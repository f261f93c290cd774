package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/f3peakcity/f3-bot/internal/adapters/http/api"
	"github.com/f3peakcity/f3-bot/internal/adapters/http/swagger"
	app "github.com/f3peakcity/f3-bot/internal/app"
	"github.com/f3peakcity/f3-bot/internal/bootstrap"
	"github.com/f3peakcity/f3-bot/internal/config"
	"github.com/f3peakcity/f3-bot/pkg/logger"
	"github.com/f3peakcity/f3-bot/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 11 * time.Minute
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
	pipelineRunTimeout     = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("backblast server: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	res, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	opts := []app.Option{
		app.WithLogger(log.Named("ingest")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithStore(res.Store),
	}
	if res.Notifier != nil {
		opts = append(opts, app.WithNotifier(res.Notifier))
	}
	if res.Mirror != nil {
		opts = append(opts, app.WithMirror(res.Mirror))
	}
	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	pipe := app.NewPipeline(res.Store, res.Venues, res.Sink,
		app.WithTables(cfg.PersonTable, cfg.EventTable),
		app.WithTargetCategory(cfg.PipelineTargetCategory),
		app.WithDefaultVenue(cfg.PipelineDefaultVenue),
		app.WithPipelineLogger(log.Named("pipeline")))
	if cfg.PipelineInterval > 0 {
		go pipe.Schedule(ctx, cfg.PipelineInterval)
	}

	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, pipe, svc,
		api.WithLogger(log.Named("api")),
		api.WithRunTimeout(pipelineRunTimeout)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	// queued submissions are stored before the store closes
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "ingest shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// startServiceMetricsUpdater refreshes gauges that are cheaper to sample than
// to maintain on every call.
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

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
