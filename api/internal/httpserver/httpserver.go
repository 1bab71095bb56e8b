package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pestai/api/internal/handle"
	"pestai/api/internal/metrics"
)

type Options struct {
	TrustedProxies     []string
	CORSAllowedOrigins []string
	Log                *logrus.Logger
}

// NewRouter wires the routes and middleware around h.
func NewRouter(h *handle.Handle, opts Options) (*gin.Engine, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	r := gin.New()
	// nil trusts nobody: ClientIP is the peer address
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	r.Use(handle.Recovery(opts.Log), handle.RequestID(), metrics.HTTPMetrics(), handle.AccessLog(opts.Log))
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSAllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", handle.RequestIDHeader},
			ExposeHeaders: []string{handle.RequestIDHeader, "Retry-After", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	r.GET("/", h.Root)
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", metrics.Handler())
	r.POST("/api/v8/analyze-image", h.AnalyzeImage)

	return r, nil
}

// Serve runs handler on addr until ctx is cancelled, then drains in-flight
// requests for up to grace.
func Serve(ctx context.Context, addr string, handler http.Handler, grace time.Duration, log *logrus.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		// no WriteTimeout: a request may legitimately wait on several model attempts
		IdleTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
