package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-api/internal/cache"
	"github.com/kjstillabower/weather-cache-api/internal/cities"
	"github.com/kjstillabower/weather-cache-api/internal/client"
	"github.com/kjstillabower/weather-cache-api/internal/config"
	httphandler "github.com/kjstillabower/weather-cache-api/internal/http"
	"github.com/kjstillabower/weather-cache-api/internal/kvstore"
	"github.com/kjstillabower/weather-cache-api/internal/observability"
	"github.com/kjstillabower/weather-cache-api/internal/prewarm"
	"github.com/kjstillabower/weather-cache-api/internal/ratelimit"
	"github.com/kjstillabower/weather-cache-api/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var store kvstore.Store
	var memcachedCloser *kvstore.MemcachedStore
	switch cfg.StoreBackend {
	case "memcached":
		mc, err := kvstore.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcachedCloser = mc
		store = mc
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		store = kvstore.NewMemoryStore()
		logger.Info("store backend: in_memory")
	}

	cacheStore := cache.New(store, cfg.CacheTTL)
	limiter := ratelimit.New(store, cfg.RateLimitPerMinute, cfg.RateLimitRowExpiry)

	provider := client.NewOpenMeteoClient(client.Config{
		BaseURL:                 cfg.ProviderBaseURL,
		Timeout:                 cfg.ProviderTimeout,
		RetryAttempts:           cfg.RetryAttempts,
		RetryBaseDelay:          cfg.RetryBaseDelay,
		RetryMaxDelay:           cfg.RetryMaxDelay,
		BreakerFailureThreshold: uint32(cfg.BreakerFailureThreshold),
		BreakerCooldown:         cfg.BreakerCooldown,
	})
	logger.Info("provider client ready",
		zap.String("base_url", cfg.ProviderBaseURL),
		zap.Int("retry_attempts", cfg.RetryAttempts),
		zap.Int("breaker_failure_threshold", cfg.BreakerFailureThreshold),
		zap.Duration("breaker_cooldown", cfg.BreakerCooldown))

	weatherService := service.NewWeatherService(provider, cacheStore, limiter, cfg.InternalAPIKey)
	handler := httphandler.NewHandler(weatherService, cfg.InternalAPIKey, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	var warmer *prewarm.Warmer
	if cfg.PrewarmEnabled {
		warmer = prewarm.New(cfg.SelfBaseURL, cfg.InternalAPIKey, cities.Names(), cfg.PrewarmTimeout, logger)
		if err := warmer.Start(cfg.PrewarmSchedule); err != nil {
			logger.Fatal("pre-warm schedule", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcachedCloser != nil {
		if err := memcachedCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
