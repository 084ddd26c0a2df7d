package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from env (plus an optional
// YAML tuning file). Env always wins; the file only supplies tuning knobs.
type Config struct {
	ServerPort  string
	SelfBaseURL string // base URL the pre-warm job calls back into

	InternalAPIKey string

	CacheTTL     time.Duration
	StoreBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	ProviderBaseURL string
	ProviderTimeout time.Duration

	RetryAttempts           int
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	RateLimitPerMinute int
	RateLimitRowExpiry time.Duration

	PrewarmEnabled  bool
	PrewarmSchedule string
	PrewarmTimeout  time.Duration

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port        string `yaml:"port"`
		SelfBaseURL string `yaml:"self_base_url"`
	} `yaml:"server"`

	Store struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Cache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"cache"`

	Provider struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"provider"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		BreakerFailureThreshold int    `yaml:"breaker_failure_threshold"`
		BreakerCooldown         string `yaml:"breaker_cooldown"`
	} `yaml:"reliability"`

	RateLimit struct {
		PerMinute int    `yaml:"per_minute"`
		RowExpiry string `yaml:"row_expiry"`
	} `yaml:"rate_limit"`

	Prewarm struct {
		Enabled  *bool  `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"prewarm"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load reads configuration: .env via godotenv (when present), then the
// optional config/{ENV_NAME}.yaml tuning file (default dev), then env
// variables, which take precedence. Call from the project root.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	fc, err := loadFile()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("SERVER_PORT"), fc.Server.Port, "7071")
	cfg.SelfBaseURL = firstNonEmpty(os.Getenv("SELF_BASE_URL"), fc.Server.SelfBaseURL, "http://localhost:"+cfg.ServerPort)

	// Known dev value; must be overridden in any real deployment.
	cfg.InternalAPIKey = firstNonEmpty(os.Getenv("INTERNAL_API_KEY"), "dev-1234")

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 600*time.Second)
	if s := strings.TrimSpace(os.Getenv("CACHE_TTL_SECONDS")); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("CACHE_TTL_SECONDS must be a positive integer, got %q", s)
		}
		cfg.CacheTTL = time.Duration(secs) * time.Second
	}

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("STORE_BACKEND"), fc.Store.Backend, "in_memory")))
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Store.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.ProviderBaseURL = firstNonEmpty(os.Getenv("PROVIDER_BASE_URL"), fc.Provider.URL, "https://api.open-meteo.com/v1/forecast")
	cfg.ProviderTimeout = parseDuration(fc.Provider.Timeout, 10*time.Second)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 3*time.Second)
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerCooldown = parseDuration(fc.Reliability.BreakerCooldown, 30*time.Second)

	cfg.RateLimitPerMinute = fc.RateLimit.PerMinute
	if s := strings.TrimSpace(os.Getenv("RATE_LIMIT_PER_MINUTE")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	cfg.RateLimitRowExpiry = parseDuration(fc.RateLimit.RowExpiry, 10*time.Minute)

	cfg.PrewarmEnabled = true
	if fc.Prewarm.Enabled != nil {
		cfg.PrewarmEnabled = *fc.Prewarm.Enabled
	}
	if s := strings.TrimSpace(os.Getenv("PREWARM_ENABLED")); s != "" {
		cfg.PrewarmEnabled = s == "1" || strings.EqualFold(s, "true")
	}
	cfg.PrewarmSchedule = firstNonEmpty(os.Getenv("PREWARM_SCHEDULE"), fc.Prewarm.Schedule, "*/15 * * * *")
	cfg.PrewarmTimeout = parseDuration(fc.Prewarm.Timeout, 5*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads config/{ENV_NAME}.yaml when it exists. A missing file is
// fine; env and defaults carry the configuration.
func loadFile() (*fileConfig, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &fc, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.InternalAPIKey == "" {
		return fmt.Errorf("INTERNAL_API_KEY must not be empty")
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}
	switch cfg.StoreBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("store.backend must be in_memory or memcached, got %q", cfg.StoreBackend)
	}
	return nil
}
