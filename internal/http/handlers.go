package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-api/internal/observability"
	"github.com/kjstillabower/weather-cache-api/internal/service"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	apiKey         string
	logger         *zap.Logger
}

// NewHandler returns a new Handler. apiKey is the shared secret callers
// must present via the x-api-key header or key query parameter.
func NewHandler(weatherService *service.WeatherService, apiKey string, logger *zap.Logger) *Handler {
	return &Handler{
		weatherService: weatherService,
		apiKey:         apiKey,
		logger:         logger,
	}
}

// GetWeather handles GET /weather?city=&refresh=&clear=&key=.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Unauthorized - missing or invalid x-api-key",
		})
		return
	}

	query := r.URL.Query()
	city := strings.ToLower(strings.TrimSpace(query.Get("city")))
	if city == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "city is required"})
		return
	}
	refresh := query.Get("refresh") == "1"
	clear := query.Get("clear") == "1"

	result, err := h.weatherService.GetWeather(r.Context(), city, refresh, clear)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// authorized checks the caller-supplied secret against the configured key.
// The header wins over the query parameter when both are present.
func (h *Handler) authorized(r *http.Request) bool {
	supplied := r.Header.Get("x-api-key")
	if supplied == "" {
		supplied = r.URL.Query().Get("key")
	}
	return supplied != "" && supplied == h.apiKey
}

// GetHealth handles GET /health. No auth.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"service": "weather-api",
	})
}

// writeServiceError maps the orchestrator's error taxonomy onto the
// status/body pairs the API promises. Every failure body carries an
// "error" field; nothing unstructured leaves the handler.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *service.RateLimitExceededError
	if errors.As(err, &rateErr) {
		observability.RateLimitDeniedTotal.Inc()
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":            "rate_limit_exceeded",
			"limit_per_minute": rateErr.Limit,
		})
		return
	}

	if errors.Is(err, service.ErrCityNotSupported) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "city_not_supported_in_demo"})
		return
	}

	var provErr *service.ProviderFailureError
	if errors.As(err, &provErr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "provider_failed",
			"details": provErr.Err.Error(),
		})
		return
	}

	// Storage failure outside the fail-open cache read path.
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
