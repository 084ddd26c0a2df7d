package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-cache-api/internal/models"
	"github.com/kjstillabower/weather-cache-api/internal/observability"
)

// WeatherProvider fetches current weather for a coordinate pair.
type WeatherProvider interface {
	FetchCurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherPayload, error)
}

var (
	// ErrBreakerOpen is returned without attempting a network call while the
	// circuit breaker is open. It does not count as a fresh failure.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// errTransport marks network-level attempt failures, the only class the
	// retry loop is allowed to retry.
	errTransport = errors.New("transport failure")
)

// hourlyFields are the series requested from Open-Meteo, both as current
// conditions and as hourly parallel arrays for fallback synthesis.
const hourlyFields = "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,wind_speed_10m,wind_direction_10m"

// Config holds provider client parameters. Zero fields take defaults.
type Config struct {
	BaseURL                 string
	Timeout                 time.Duration
	RetryAttempts           int
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration
	BreakerFailureThreshold uint32
	BreakerCooldown         time.Duration
}

// OpenMeteoClient calls the Open-Meteo forecast endpoint with bounded
// retries and a shared circuit breaker. One instance guards all provider
// calls in the process; construct independent instances in tests.
type OpenMeteoClient struct {
	baseURL        string
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewOpenMeteoClient creates an OpenMeteoClient from cfg.
func NewOpenMeteoClient(cfg Config) *OpenMeteoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 3 * time.Second
	}
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	threshold := cfg.BreakerFailureThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: 1, // single trial call while half-open
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(name, from.String(), to.String(), breakerStateValue(to))
		},
	})

	return &OpenMeteoClient{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		breaker:        breaker,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// FetchCurrentWeather performs one logical provider call: up to
// retryAttempts attempts with exponential backoff, retrying only
// transport-level failures. Error HTTP responses count against the breaker
// but are not retried, and a breaker-open result aborts immediately.
func (c *OpenMeteoClient) FetchCurrentWeather(ctx context.Context, lat, lon float64) (models.WeatherPayload, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.Inc()
			delay := c.backoffDelay(attempt)
			select {
			case <-ctx.Done():
				return models.WeatherPayload{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload, err := c.attempt(ctx, lat, lon)
		if err == nil {
			return payload, nil
		}

		lastErr = err
		if !errors.Is(err, errTransport) {
			return models.WeatherPayload{}, err
		}
	}

	return models.WeatherPayload{}, fmt.Errorf("exhausted retries: %w", lastErr)
}

// attempt runs a single call through the circuit breaker.
func (c *OpenMeteoClient) attempt(ctx context.Context, lat, lon float64) (models.WeatherPayload, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, lat, lon)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return models.WeatherPayload{}, fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		}
		return models.WeatherPayload{}, err
	}
	return result.(models.WeatherPayload), nil
}

// call performs one HTTP attempt against the provider.
func (c *OpenMeteoClient) call(ctx context.Context, lat, lon float64) (models.WeatherPayload, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, lat, lon)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return models.WeatherPayload{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderCallDuration.WithLabelValues("error").Observe(duration)
		return models.WeatherPayload{}, fmt.Errorf("%w: %v", errTransport, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderCallDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.WeatherPayload{}, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherPayload{}, fmt.Errorf("%w: read response body: %v", errTransport, err)
	}

	return normalizePayload(body, lat, lon)
}

func (c *OpenMeteoClient) buildRequest(ctx context.Context, lat, lon float64) (*http.Request, error) {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", "auto")
	params.Set("current", hourlyFields)
	params.Set("hourly", hourlyFields)
	params.Set("forecast_days", "1")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// backoffDelay doubles from the base delay per retry, capped at the max.
func (c *OpenMeteoClient) backoffDelay(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}
	return time.Duration(delay)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
