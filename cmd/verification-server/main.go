// cmd/verification-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"token-verification-service/internal/access"
	"token-verification-service/internal/cache"
	"token-verification-service/internal/chain"
	"token-verification-service/internal/common/config"
	"token-verification-service/internal/common/database"
	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/observability"
	"token-verification-service/internal/oracle"
	"token-verification-service/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting token verification service",
		zap.String("environment", cfg.App.Environment),
		zap.Int("networks", len(cfg.Networks)),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Chain registry: partial availability is acceptable ---
	probeTimeout := time.Duration(cfg.Verification.ProbeTimeout) * time.Millisecond
	registry := chain.New(ctx, cfg.Networks, probeTimeout, log)
	defer registry.Close()

	// --- Redis: shared by the verification cache and the rate limiter.
	// An unreachable store degrades both instead of blocking startup.
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Warn("redis unavailable, cache and rate limiting degrade", zap.Error(err))
	}

	var redisClient *redis.Client
	if rdb != nil {
		redisClient = rdb.GetClient()
		defer rdb.Close()
	}

	verificationCache := cache.New(ctx, redisClient, time.Duration(cfg.Verification.CacheTTL)*time.Second, log)

	ownershipOracle, err := oracle.New(registry, oracle.Config{
		CallTimeout:  time.Duration(cfg.Verification.ChainCallTimeout) * time.Millisecond,
		MaxRetries:   cfg.Verification.MaxRetries,
		RetryBackoff: time.Duration(cfg.Verification.RetryBackoff) * time.Millisecond,
	}, log)
	if err != nil {
		zapLog.Fatal("oracle init failed", zap.Error(err))
	}

	limiter := access.NewLimiter(ctx, redisClient, log)
	resolver := access.NewResolver(cfg.Auth.BaseURL, time.Duration(cfg.Auth.Timeout)*time.Millisecond, verificationCache, ownershipOracle, log)

	srv, err := server.New(cfg.Server, cfg.App.Name, registry, ownershipOracle, verificationCache, resolver, limiter, obs, log)
	if err != nil {
		zapLog.Fatal("server init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
}
