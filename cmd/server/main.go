package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/guardgate/internal/config"
	"github.com/GoPolymarket/guardgate/internal/feed"
	"github.com/GoPolymarket/guardgate/internal/handler"
	"github.com/GoPolymarket/guardgate/internal/middleware"
	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/GoPolymarket/guardgate/internal/repository"
	"github.com/GoPolymarket/guardgate/internal/sandbox"
	"github.com/GoPolymarket/guardgate/internal/service"
	"github.com/GoPolymarket/guardgate/internal/stream"
	"github.com/gin-gonic/gin"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	// 2. Initialize Persistence
	// The in-memory store is authoritative; Redis and Postgres only mirror receipts.
	store := repository.NewMemoryStore()
	hub := stream.NewHub(cfg.Server.StreamBacklog)
	sinks := []service.ReceiptSink{hub}

	var idempotencyStore middleware.IdempotencyStore = middleware.NewInMemIdempotencyStore(
		time.Duration(cfg.Redis.IdempotencyTTLSeconds) * time.Second)
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
			sinks = append(sinks, repository.NewRedisReceiptMirror(redisClient, cfg.Redis.ReceiptListMax))
			idempotencyStore = repository.NewRedisIdempotencyStore(redisClient,
				time.Duration(cfg.Redis.IdempotencyTTLSeconds)*time.Second)
			defer redisClient.Close()
		} else {
			logger.Error("failed to connect to redis, receipts stay in memory", "error", err)
		}
	}

	var archive handler.ReceiptArchive
	var stopCleanup func()
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			pg, err := repository.NewPostgresReceiptArchive(db)
			if err == nil {
				logger.Info("connected to postgres, receipt archive enabled")
				sinks = append(sinks, pg)
				archive = pg
				stopCleanup = startArchiveCleanup(pg, cfg)
			} else {
				logger.Error("failed to migrate receipt archive", "error", err)
			}
		} else {
			logger.Error("failed to connect to db, receipt archive disabled", "error", err)
		}
	}

	// 3. Initialize Core Services
	dispatcher := service.NewReceiptDispatcher(1000, sinks...)
	opts := []service.Option{service.WithDispatcher(dispatcher)}

	if cfg.Feeds.VerifySignatures {
		verifier, err := feed.NewVerifier(cfg.Feeds.Signers)
		if err != nil {
			log.Fatalf("Invalid feed signer config: %v", err)
		}
		logger.Info("feed signature verification enabled", "feeds", len(cfg.Feeds.Signers))
		opts = append(opts, service.WithVerifier(verifier))
	}
	if cfg.Sandbox.Replay {
		logger.Info("sandbox replay enabled for accepted fills")
		opts = append(opts, service.WithSandboxReplay(sandbox.NewProver()))
	}
	offerSvc := service.NewOfferService(store, opts...)

	// 4. Setup Router
	gin.SetMode(gin.ReleaseMode)
	r := handler.NewRouter(handler.RouterDeps{
		Config:      cfg,
		Offers:      offerSvc,
		Archive:     archive,
		Stream:      hub,
		Idempotency: idempotencyStore,
		Limiter:     middleware.NewClientLimiter(cfg.RateLimit.QPS, cfg.RateLimit.Burst),
	})

	// 5. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("guardgate started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	// Fills are finished once Shutdown returns, so the queue can be drained.
	dispatcher.Close()
	if stopCleanup != nil {
		stopCleanup()
	}

	logger.Info("server exiting")
}

// startArchiveCleanup prunes archived receipts past retention on a ticker.
func startArchiveCleanup(pg *repository.PostgresReceiptArchive, cfg *config.Config) func() {
	retention := time.Duration(cfg.Database.ReceiptRetentionDays) * 24 * time.Hour
	interval := time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute
	if retention <= 0 || interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pg.Cleanup(ctx, retention); err != nil {
					logger.Error("receipt archive cleanup failed", "error", err)
				}
			}
		}
	}()
	return cancel
}
