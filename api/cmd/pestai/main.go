package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pestai/api/internal/analysis/gemini"
	"pestai/api/internal/cache"
	"pestai/api/internal/config"
	"pestai/api/internal/handle"
	"pestai/api/internal/httpserver"
	"pestai/api/internal/logging"
	"pestai/api/internal/ratelimit"
	"pestai/api/internal/retry"
	"pestai/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- upstream model ---
	engine, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
	if err != nil {
		log.WithError(err).Fatal("gemini client")
	}
	defer engine.Close()

	policy := retry.Single(cfg.ModelCallTimeout)
	if cfg.RetryEnabled {
		policy = retry.Policy{
			MaxAttempts:     cfg.RetryMaxAttempts,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			AttemptTimeout:  cfg.ModelCallTimeout,
		}
	}
	policy.Log = log

	deps := handle.Deps{
		Model:          policy.Wrap(engine),
		ModelName:      engine.Model,
		CacheTTL:       cfg.CacheTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Log:            log,
	}

	// --- response cache ---
	respCache, err := cache.Open(ctx, cache.Options{Backend: cfg.CacheBackend, RedisURL: cfg.RedisURL, TTL: cfg.CacheTTL})
	if err != nil {
		log.WithError(err).Fatal("cache")
	}
	if respCache != nil {
		defer respCache.Close()
		deps.Cache = respCache
	}

	// --- rate limiter ---
	if cfg.RateLimitEnabled {
		lim := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
		lim.StartSweeper()
		defer lim.Close()
		deps.Limiter = lim
	}

	// --- optional archive ---
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("database")
		}
		defer db.Close()
		repo := store.NewAnalysisRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("database schema")
		}
		log.WithField("dsn", store.SafeDSN(cfg.DatabaseURL)).Info("analysis archive enabled")
		deps.Archive = repo

		if cfg.ArchiveRetention > 0 {
			purger, err := store.NewPurger(repo, cfg.ArchivePurgeSchedule, cfg.ArchiveRetention, log)
			if err != nil {
				log.WithError(err).Fatal("archive purge")
			}
			purger.Start()
			defer purger.Stop()
		}
	}

	log.WithFields(logrus.Fields{
		"model":         engine.Model,
		"cache":         cfg.CacheBackend,
		"cache_ttl":     cfg.CacheTTL,
		"rate_limit":    cfg.RateLimitEnabled,
		"rate_requests": cfg.RateLimitRequests,
		"rate_window":   cfg.RateLimitWindow,
		"retry":         cfg.RetryEnabled,
		"max_attempts":  policy.MaxAttempts,
	}).Info("pestai starting")

	router, err := httpserver.NewRouter(handle.New(deps), httpserver.Options{
		TrustedProxies:     cfg.TrustedProxies,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Log:                log,
	})
	if err != nil {
		log.WithError(err).Fatal("router")
	}

	if err := httpserver.Serve(ctx, ":"+cfg.Port, router, 30*time.Second, log); err != nil {
		log.WithError(err).Fatal("http server")
	}
	log.Info("stopped")
}
