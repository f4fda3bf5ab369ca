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

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/ghostlog/internal/adapter/repository/redis"
	"github.com/V4T54L/ghostlog/internal/pkg/config"
	"github.com/V4T54L/ghostlog/internal/pkg/logger"
	"github.com/V4T54L/ghostlog/internal/usecase"
)

const (
	processingInterval = 1 * time.Second
	errorBackoff       = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting consumer worker")

	if cfg.PostgresURL == "" {
		log.Error("POSTGRES_URL is required by the consumer")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisAddr)
	if err != nil {
		log.Error("invalid redis address", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// Create a unique consumer name for this instance
	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "consumer-default"
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewIngestMetrics(reg)
	metricsServer := &http.Server{Addr: cfg.ConsumerMetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	// The consumer has no WAL; it only reads from the stream.
	redisLogRepo := redisrepo.NewLogRepository(redisClient, log, cfg.ConsumerGroup, cfg.RedisDLQStream, nil, m)
	pgLogRepo := postgres.NewLogRepository(db, log)

	processLogsUseCase := usecase.NewProcessLogsUseCase(
		redisLogRepo, pgLogRepo, log,
		cfg.ConsumerGroup, consumerName,
		cfg.ConsumerRetryCount, cfg.ConsumerRetryBackoff,
	).WithBatchSize(cfg.ConsumerBatchSize).WithMetrics(m)

	log.Info("consumer worker started, processing logs...", "group", cfg.ConsumerGroup, "consumer", consumerName)

	wait := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			log.Info("context cancelled, shutting down consumer loop")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			cancel()
			log.Info("consumer worker shut down gracefully")
			return
		case <-time.After(wait):
		}

		processed, err := processLogsUseCase.ProcessBatch(ctx)
		switch {
		case err != nil:
			log.Error("error processing batch", "error", err)
			wait = errorBackoff
		case processed >= cfg.ConsumerBatchSize:
			// Full batch; there is probably more waiting.
			wait = 0
		default:
			wait = processingInterval
		}
	}
}
