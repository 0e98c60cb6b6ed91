// cmd/extractor-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"localbiz-extractor/internal/cache"
	"localbiz-extractor/internal/common/config"
	"localbiz-extractor/internal/common/database"
	"localbiz-extractor/internal/common/logger"
	"localbiz-extractor/internal/common/observability"
	"localbiz-extractor/internal/extractor"
	"localbiz-extractor/internal/orchestrator"
	"localbiz-extractor/internal/server"
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
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("starting extractor server",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Durable cache tier (optional) ---
	var durable *cache.RedisTier
	if cfg.Cache.Redis.Enabled {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Cache.Redis)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			// The tiered cache degrades on its own; starting without the
			// durable tier just means starting already degraded.
			zapLog.Warn("starting without durable cache tier", zap.Error(err))
		} else {
			durable = cache.NewRedisTier(redisClient, cfg.Cache.Redis.KeyPrefix)
			defer redisClient.Close()
		}
	}

	tiered := cache.NewTiered(cfg.Cache, durable, log)
	defer tiered.Close()

	// --- Page renderer ---
	var renderer extractor.Renderer
	switch cfg.Crawler.Engine {
	case "static":
		renderer = extractor.NewStaticRenderer(time.Duration(cfg.Crawler.NavTimeout) * time.Second)
	default:
		chrome := extractor.NewChromeRenderer(cfg.Crawler, log)
		defer chrome.Close()
		renderer = chrome
	}

	orch := orchestrator.New(cfg.Crawler, tiered, renderer, log, obs)
	srv := server.New(cfg.Server, orch, log, cfg.App.Version)

	// --- Periodic expired-entry sweep ---
	sweepStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Cache.CleanupInterval) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepStop:
				return
			case <-ticker.C:
				removed := tiered.ClearExpired(context.Background())
				if removed > 0 {
					log.Info("expired cache entries swept", map[string]interface{}{"removed": removed})
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLog.Error("http server failed", zap.Error(err))
	}

	close(sweepStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := orch.Drain(shutdownCtx); err != nil {
		zapLog.Warn("orchestrator drain incomplete", zap.Error(err))
	}

	zapLog.Info("extractor server stopped")
}
