package handle

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pestai/api/internal/analysis"
	"pestai/api/internal/analysis/types"
	"pestai/api/internal/cache"
	"pestai/api/internal/ratelimit"
)

const (
	// CacheNamespace prefixes every response cache key.
	CacheNamespace = "pestai-analysis"
	// FormField is the multipart field carrying the image.
	FormField = "file"

	DefaultCacheTTL       = 24 * time.Hour
	DefaultMaxUploadBytes = 20 << 20

	livenessMessage = "PestAI - AI Analysis Microservice v8.3 is operational."
)

// Limiter decides whether a client identity may proceed.
type Limiter interface {
	Allow(identity string) ratelimit.Decision
}

// Archive records freshly computed analyses.
type Archive interface {
	Upsert(ctx context.Context, imageHash, model, contentType string, res *types.AnalysisResponse) (int, error)
}

// Deps are the collaborators of Handle. Cache, Limiter and Archive are
// optional; a nil value switches the corresponding step off.
type Deps struct {
	Model   analysis.Model // retry policy already applied
	Cache   cache.Store
	Limiter Limiter
	Archive Archive

	ModelName      string
	CacheTTL       time.Duration
	MaxUploadBytes int64

	Log *logrus.Logger
}

type Handle struct {
	model   analysis.Model
	cache   cache.Store
	limiter Limiter
	archive Archive

	modelName      string
	cacheTTL       time.Duration
	maxUploadBytes int64

	log *logrus.Logger
}

func New(d Deps) *Handle {
	h := &Handle{
		model:          d.Model,
		cache:          d.Cache,
		limiter:        d.Limiter,
		archive:        d.Archive,
		modelName:      d.ModelName,
		cacheTTL:       d.CacheTTL,
		maxUploadBytes: d.MaxUploadBytes,
		log:            d.Log,
	}
	if h.cacheTTL <= 0 {
		h.cacheTTL = DefaultCacheTTL
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultMaxUploadBytes
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.modelName == "" && h.model != nil {
		h.modelName = h.model.Name()
	}
	return h
}

// Root is the liveness probe.
func (h *Handle) Root(c *gin.Context) {
	c.JSON(200, gin.H{"message": livenessMessage})
}

// Healthz answers plain "ok".
func (h *Handle) Healthz(c *gin.Context) {
	c.String(200, "ok")
}

// entry returns a request-scoped log entry.
func (h *Handle) entry(c *gin.Context) *logrus.Entry {
	return h.log.WithFields(logrus.Fields{
		"request_id": c.GetString(RequestIDKey),
		"client_ip":  c.ClientIP(),
	})
}

// detail aborts the request with the error body shape shared by all routes.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
