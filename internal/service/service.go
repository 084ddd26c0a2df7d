package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-api/internal/cache"
	"github.com/kjstillabower/weather-cache-api/internal/cities"
	"github.com/kjstillabower/weather-cache-api/internal/client"
	"github.com/kjstillabower/weather-cache-api/internal/models"
	"github.com/kjstillabower/weather-cache-api/internal/observability"
	"github.com/kjstillabower/weather-cache-api/internal/ratelimit"
)

// Response source tags.
const (
	SourceCache         = "cache"
	SourceProvider      = "provider"
	SourceCacheFallback = "cache-fallback"
)

// Result is a successful weather lookup, tagged with where the data came from.
type Result struct {
	Source string                `json:"source"`
	City   string                `json:"city"`
	Data   models.WeatherPayload `json:"data"`
}

// WeatherService orchestrates one weather request: optional cache clear,
// rate gate, cache fast path, city resolution, provider fetch with
// write-through, and fallback to the last cached value on provider failure.
type WeatherService struct {
	provider client.WeatherProvider
	cache    *cache.Store
	limiter  *ratelimit.Limiter
	rateKey  string
}

// NewWeatherService creates a WeatherService. rateKey is the limiter bucket
// key; today the caller passes the service API key, making the limiter one
// shared counter for all callers.
func NewWeatherService(provider client.WeatherProvider, cacheStore *cache.Store, limiter *ratelimit.Limiter, rateKey string) *WeatherService {
	return &WeatherService{
		provider: provider,
		cache:    cacheStore,
		limiter:  limiter,
		rateKey:  rateKey,
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetWeather runs the request state machine for a non-empty city name.
// refresh skips the cache fast path (but not the failure fallback); clear
// evicts the entry first and continues. Terminal failures are typed:
// *RateLimitExceededError, ErrCityNotSupported, *ProviderFailureError;
// anything else is a storage failure.
func (s *WeatherService) GetWeather(ctx context.Context, city string, refresh, clear bool) (Result, error) {
	key := normalizeCity(city)
	logger := loggerFromContext(ctx)

	if clear {
		if err := s.cache.Clear(ctx, key); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("clear").Inc()
			if logger != nil {
				logger.Warn("cache clear failed", zap.String("city", key), zap.Error(err))
			}
		}
	}

	permitted, count, err := s.limiter.Allow(ctx, s.rateKey)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if !permitted {
		return Result{}, &RateLimitExceededError{Limit: s.limiter.Limit(), Count: count}
	}

	if !refresh {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			// Fail-open: a broken cache read degrades to a miss.
			observability.CacheErrorsTotal.WithLabelValues("get").Inc()
			if logger != nil {
				logger.Warn("cache get failed", zap.String("city", key), zap.Error(err))
			}
		} else if ok {
			observability.ResponsesBySourceTotal.WithLabelValues(SourceCache).Inc()
			if logger != nil {
				logger.Debug("cache hit", zap.String("city", key))
			}
			return Result{Source: SourceCache, City: key, Data: cached}, nil
		}
	}

	coord, ok := cities.Coordinates(key)
	if !ok {
		return Result{}, ErrCityNotSupported
	}

	payload, fetchErr := s.provider.FetchCurrentWeather(ctx, coord.Latitude, coord.Longitude)
	if fetchErr != nil {
		// One more cache read, refresh flag ignored.
		fallback, ok, cacheErr := s.cache.Get(ctx, key)
		if cacheErr == nil && ok {
			observability.ResponsesBySourceTotal.WithLabelValues(SourceCacheFallback).Inc()
			if logger != nil {
				logger.Info("serving cache fallback", zap.String("city", key), zap.Error(fetchErr))
			}
			return Result{Source: SourceCacheFallback, City: key, Data: fallback}, nil
		}
		return Result{}, &ProviderFailureError{Err: fetchErr}
	}

	if setErr := s.cache.Set(ctx, key, payload); setErr != nil {
		// A successful fetch is not discarded because caching it failed.
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		if logger != nil {
			logger.Warn("cache set failed", zap.String("city", key), zap.Error(setErr))
		}
	}

	observability.ResponsesBySourceTotal.WithLabelValues(SourceProvider).Inc()
	if logger != nil {
		logger.Debug("weather served from provider", zap.String("city", key))
	}
	return Result{Source: SourceProvider, City: key, Data: payload}, nil
}

// normalizeCity normalizes city names by trimming whitespace and lowering
// case, keeping cache keys and table lookups consistent.
func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
