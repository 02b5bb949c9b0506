package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leozw/stream-meter/internal/collector"
	"github.com/leozw/stream-meter/internal/config"
	"github.com/leozw/stream-meter/internal/core"
	"github.com/leozw/stream-meter/internal/db"
	"github.com/leozw/stream-meter/internal/logging"
	"github.com/leozw/stream-meter/internal/metrics"
	"github.com/leozw/stream-meter/internal/scheduler"
	"github.com/leozw/stream-meter/internal/youtube"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup logger
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		logger.Fatal("Failed to load timezone", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Database connection
	database, err := db.NewConnection(cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database)
	yt := youtube.NewClient(cfg.YouTube)
	clock := core.NewClock(loc)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCollector(registry)

	coll := collector.New(yt, repo, clock, metricsCollector, logger.Named("collector"))
	supervisor := scheduler.NewSupervisor(
		repo,
		scheduler.NewWindowResolver(yt),
		coll,
		clock,
		scheduler.NewRegistry(),
		metricsCollector,
		logger.Named("scheduler"),
		cfg.Scheduler,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		supervisor.Start(ctx)
		close(done)
	}()

	// Start metrics exporter
	if cfg.Mimir.URL != "" {
		writer := metrics.NewRemoteWriter(cfg.Mimir, metricsCollector.Gatherer(), logger.Named("remote_write"))
		go writer.Start(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metricsCollector.Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("Worker started",
		zap.String("timezone", loc.String()),
		zap.String("metrics_port", cfg.Server.MetricsPort),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown", zap.Error(err))
	}

	logger.Info("Worker exited")
}
