package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/ghostlog/internal/adapter/api"
	"github.com/V4T54L/ghostlog/internal/adapter/api/handler"
	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/adapter/notifier"
	"github.com/V4T54L/ghostlog/internal/adapter/pii"
	"github.com/V4T54L/ghostlog/internal/adapter/ratelimit"
	"github.com/V4T54L/ghostlog/internal/adapter/repository/memory"
	"github.com/V4T54L/ghostlog/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/ghostlog/internal/adapter/repository/redis"
	"github.com/V4T54L/ghostlog/internal/adapter/repository/wal"
	"github.com/V4T54L/ghostlog/internal/adapter/storage"
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/config"
	"github.com/V4T54L/ghostlog/internal/pkg/logger"
	"github.com/V4T54L/ghostlog/internal/usecase"
)

const (
	healthCheckInterval = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("ingest service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("servers shut down gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewIngestMetrics(reg)

	// --- Redis buffer with WAL failover ---
	redisClient, err := redisrepo.NewClient(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("could not connect to redis, will proceed in WAL-only mode", "error", err)
	}

	walRepo, err := wal.NewWALRepository(cfg.WALPath, cfg.WALSegmentSize, cfg.WALMaxDiskSize, logger)
	if err != nil {
		return err
	}
	defer walRepo.Close()

	redisLogRepo := redisrepo.NewLogRepository(redisClient, logger, cfg.ConsumerGroup, cfg.RedisDLQStream, walRepo, m)
	if err := redisLogRepo.ReplayWAL(ctx); err != nil {
		logger.Warn("startup WAL replay incomplete, will retry on recovery", "error", err)
	}

	index := memory.NewLogRepository()
	store := storage.NewIndexedStorage(redisLogRepo, index, logger)

	// --- Alert channel ---
	alerter, err := notifier.New(notifier.Config{
		Channel:      cfg.AlertChannel,
		WebhookURL:   cfg.AlertWebhookURL,
		RedisClient:  redisClient,
		RedisChannel: cfg.AlertRedisChannel,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.AlertKafkaTopic,
		Timeout:      cfg.AlertTimeout,
	}, logger, m)
	if err != nil {
		return err
	}
	defer alerter.Close()
	logger.Info("alert channel configured", "channel", alerter.Channel())

	// --- Use cases ---
	limiter, err := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod)
	if err != nil {
		return err
	}
	processor := usecase.NewFanOutProcessor(store, alerter, logger, m)
	redactor := pii.NewRedactor(cfg.RedactionFields(), logger)
	broker := handler.NewSSEBroker(ctx, logger)

	ingestUseCase := usecase.NewIngestBatchUseCase(limiter, processor, redactor, logger, m, usecase.WithObserver(broker))
	queryUseCase := usecase.NewQueryLogsUseCase(index, logger)
	adminUseCase := usecase.NewAdminStreamUseCase(redisrepo.NewAdminRepository(redisClient, logger, cfg.RedisDLQStream))

	// --- Optional API key auth ---
	var apiKeyRepo domain.APIKeyRepository
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		apiKeyRepo = postgres.NewAPIKeyRepository(db, logger, cfg.APIKeyCacheTTL, m)
		logger.Info("API key authentication enabled")
	} else {
		logger.Warn("POSTGRES_URL not set, ingest endpoint is unauthenticated")
	}

	// --- Servers ---
	ingestServer := &http.Server{
		Addr:         cfg.IngestServerAddr,
		Handler:      api.NewRouter(cfg, logger, apiKeyRepo, ingestUseCase, queryUseCase, broker, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // /events streams indefinitely
		IdleTimeout:  15 * time.Second,
	}
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(adminUseCase, reg, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting ingest server", "addr", ingestServer.Addr)
		return serve(ingestServer)
	})
	g.Go(func() error {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		return serve(adminServer)
	})
	g.Go(func() error {
		redisLogRepo.StartHealthCheck(gctx, healthCheckInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			ingestServer.Shutdown(shutdownCtx),
			adminServer.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
