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

	"github.com/dunamismax/pixelgrade/internal/api"
	"github.com/dunamismax/pixelgrade/internal/assets"
	"github.com/dunamismax/pixelgrade/internal/batch"
	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/config"
	"github.com/dunamismax/pixelgrade/internal/logging"
	"github.com/dunamismax/pixelgrade/internal/pipeline"
	"github.com/dunamismax/pixelgrade/internal/queue"
	"github.com/dunamismax/pixelgrade/internal/ratelimit"
	"github.com/dunamismax/pixelgrade/internal/storage"
	"github.com/dunamismax/pixelgrade/internal/store"
	"github.com/dunamismax/pixelgrade/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logger = logger.Named("api")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName + "-api",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer flush(logger, "tracing", shutdownTracing)

	if err := codec.Startup(); err != nil {
		return fmt.Errorf("start codec runtime: %w", err)
	}
	defer codec.Shutdown()

	renderer, err := pipeline.NewLocalRenderer()
	if err != nil {
		return err
	}
	library := assets.NewStore()
	defer library.Close()

	opts := api.Options{
		Logger:         logger,
		Assets:         library,
		Exporter:       batch.NewExporter(renderer, logger),
		QueueName:      cfg.Queue.Name,
		SubjectHeader:  cfg.RateLimit.SubjectHeader,
		ArchiveLabel:   cfg.Export.ArchiveLabel,
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		PreviewMaxEdge: cfg.API.PreviewMaxEdge,
	}

	exports, closeExports, err := openExportStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeExports()
	opts.Exports = exports

	if cfg.Storage.Disabled {
		logger.Warn("object storage disabled, batch exports are unavailable")
	} else {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		if err := storageClient.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		opts.Storage = storageClient

		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name, cfg.Queue.TaskTimeout)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("queue client close", zap.Error(err))
			}
		}()
		opts.Queue = queueClient
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer func() { _ = redisClient.Close() }()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		opts.RateLimiter = limiter
		logger.Info("export rate limiting enabled",
			zap.Int("capacity", cfg.RateLimit.Capacity),
			zap.Duration("window", cfg.RateLimit.Window),
		)
	}

	app := api.NewServer(opts)
	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func openExportStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (store.ExportStore, func(), error) {
	if cfg.DSN == "" {
		logger.Warn("no database configured, export records are kept in memory")
		return store.NewMemoryExportStore(), func() {}, nil
	}
	pg, err := store.NewPostgresExportStore(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open export store: %w", err)
	}
	return pg, func() { _ = pg.Close() }, nil
}

func flush(logger *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown "+name, zap.Error(err))
	}
}
