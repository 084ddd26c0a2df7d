package prewarm

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-cache-api/internal/observability"
)

// Warmer periodically requests each configured city through the service's
// own HTTP endpoint, exactly as an external client would, so pre-warmed
// entries go through the same auth, rate-limit and cache path. Results are
// discarded and failures swallowed; the provider client's own resilience is
// the only retry a pre-warm request gets.
type Warmer struct {
	baseURL string
	apiKey  string
	cities  []string
	client  *http.Client
	logger  *zap.Logger
	cron    *cron.Cron
}

// New creates a Warmer. baseURL is the service's own base URL
// (e.g. http://localhost:7071); timeout bounds each per-city request.
func New(baseURL, apiKey string, cityNames []string, timeout time.Duration, logger *zap.Logger) *Warmer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Warmer{
		baseURL: baseURL,
		apiKey:  apiKey,
		cities:  cityNames,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Start runs one immediate warm sweep and schedules recurring sweeps with
// the given standard 5-field cron expression (e.g. "*/15 * * * *").
func (w *Warmer) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, w.Run); err != nil {
		return err
	}
	w.cron = c
	c.Start()
	if w.logger != nil {
		w.logger.Info("pre-warm scheduled", zap.String("schedule", schedule), zap.Strings("cities", w.cities))
	}
	go w.Run()
	return nil
}

// Stop cancels the recurring schedule. A sweep already in progress finishes.
func (w *Warmer) Stop() {
	if w.cron != nil {
		w.cron.Stop()
	}
}

// Run performs one warm sweep over all cities.
func (w *Warmer) Run() {
	observability.PrewarmRunsTotal.Inc()
	for _, city := range w.cities {
		w.warmCity(city)
	}
}

func (w *Warmer) warmCity(city string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	reqURL := w.baseURL + "/weather?city=" + url.QueryEscape(city)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		observability.PrewarmErrorsTotal.Inc()
		return
	}
	req.Header.Set("x-api-key", w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		observability.PrewarmErrorsTotal.Inc()
		if w.logger != nil {
			w.logger.Debug("pre-warm request failed", zap.String("city", city), zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		observability.PrewarmErrorsTotal.Inc()
		if w.logger != nil {
			w.logger.Debug("pre-warm request rejected", zap.String("city", city), zap.Int("status", resp.StatusCode))
		}
	}
}
