package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	GeminiAPIKey     string
	GeminiModel      string
	ModelCallTimeout time.Duration

	RetryEnabled         bool
	RetryMaxAttempts     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	CacheBackend string // memory | redis | none
	CacheTTL     time.Duration
	RedisURL     string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string

	MaxUploadBytes int64

	DatabaseURL          string
	ArchiveRetention     time.Duration // 0 keeps archived rows forever
	ArchivePurgeSchedule string

	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
}

// Load reads the environment (after an optional .env file), applies
// defaults and validates. A missing GEMINI_API_KEY is an error: the service
// must not start without its upstream credential.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Port: getEnv("PORT", "8000"),

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ModelCallTimeout: getDuration("MODEL_CALL_TIMEOUT", 120*time.Second, &errs),

		RetryEnabled:         getBool("RETRY_ENABLED", true, &errs),
		RetryMaxAttempts:     getInt("RETRY_MAX_ATTEMPTS", 3, &errs),
		RetryInitialInterval: getDuration("RETRY_INITIAL_INTERVAL", 2*time.Second, &errs),
		RetryMaxInterval:     getDuration("RETRY_MAX_INTERVAL", 10*time.Second, &errs),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		CacheTTL:     getDuration("CACHE_TTL", 24*time.Hour, &errs),
		RedisURL:     os.Getenv("REDIS_URL"),

		RateLimitEnabled:  getBool("RATE_LIMIT_ENABLED", true, &errs),
		RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 15, &errs),
		RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute, &errs),
		TrustedProxies:    getList("TRUSTED_PROXIES"),

		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 20<<20, &errs)),

		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ArchiveRetention:     getDuration("ARCHIVE_RETENTION", 0, &errs),
		ArchivePurgeSchedule: getEnv("ARCHIVE_PURGE_SCHEDULE", "@daily"),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
	}

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("missing required env GEMINI_API_KEY"))
	}
	switch c.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be memory, redis or none, got %q", c.CacheBackend))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be >= 1"))
	}
	if c.RateLimitRequests < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be >= 1"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.ModelCallTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_CALL_TIMEOUT must be positive"))
	}
	if c.ArchiveRetention < 0 {
		errs = append(errs, errors.New("ARCHIVE_RETENTION must not be negative"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func getBool(k string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}

func getDuration(k string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}

func getList(k string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(k), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
