package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pestai/api/internal/analysis"
	"pestai/api/internal/analysis/types"
	"pestai/api/internal/metrics"
	"pestai/api/internal/util"
)

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// multipartOverhead leaves room for boundaries and part headers on top of
// the image itself.
const multipartOverhead = 1 << 20

// AnalyzeImage handles POST /api/v8/analyze-image.
//
// Steps run strictly in order: content type check, rate limit, content
// fingerprint, cache probe, model call (with retries), JSON parse, schema
// decode, cache store. Any step may end the request.
func (h *Handle) AnalyzeImage(c *gin.Context) {
	log := h.entry(c)

	// The part's content type sits inside the multipart body, so the upload
	// is parsed (bounded by MaxBytesReader) before the quota is charged; a 415
	// must not use up a request.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	fh, err := c.FormFile(FormField)
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			h.reject(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("Image exceeds the %d byte limit.", h.maxUploadBytes))
		case errors.Is(err, http.ErrMissingFile):
			h.reject(c, http.StatusBadRequest, "bad_request", "Multipart field 'file' is required.")
		default:
			h.reject(c, http.StatusBadRequest, "bad_request", "Invalid multipart upload: "+err.Error())
		}
		return
	}
	if fh.Size > h.maxUploadBytes {
		h.reject(c, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("Image exceeds the %d byte limit.", h.maxUploadBytes))
		return
	}

	// 1. content type
	declared := util.MediaType(fh.Header.Get("Content-Type"))
	var data []byte
	if declared == "" || declared == "application/octet-stream" {
		// no useful declared type: look at the bytes instead
		if data, err = readPart(fh); err != nil {
			h.internal(c, log, "read upload", err)
			return
		}
		declared = util.SniffImageMIME(data)
	}
	if !acceptedTypes[declared] {
		h.reject(c, http.StatusUnsupportedMediaType, "unsupported_media", "Unsupported image format. Use JPEG or PNG.")
		return
	}

	// 2. rate limit
	if h.limiter != nil {
		d := h.limiter.Allow(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			log.WithField("retry_after", secs).Info("rate limit exceeded")
			h.reject(c, http.StatusTooManyRequests, "rate_limited", fmt.Sprintf("Rate limit exceeded: %d requests per window. Retry in %d seconds.", d.Limit, secs))
			return
		}
	}

	if data == nil {
		if data, err = readPart(fh); err != nil {
			h.internal(c, log, "read upload", err)
			return
		}
	}
	if len(data) == 0 {
		h.reject(c, http.StatusBadRequest, "bad_request", "Uploaded file is empty.")
		return
	}

	// 3. fingerprint
	hash := util.SHA256Hex(data)
	key := CacheKey(data)
	log = log.WithField("image_hash", hash[:16])
	ctx := c.Request.Context()

	// 4. cache probe
	if body, ok := h.cacheGet(ctx, log, key); ok {
		metrics.AnalysesTotal.WithLabelValues("cache_hit").Inc()
		log.Debug("served from cache")
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}

	// 5. model
	raw, err := h.model.Analyze(ctx, analysis.Input{Image: data, MIMEType: declared})
	if err != nil {
		h.upstreamError(c, log, err)
		return
	}

	// 6. parse
	txt := util.StripCodeFences(raw)
	if !json.Valid([]byte(txt)) {
		log.WithField("raw", raw).Error("model returned non-JSON text")
		h.reject(c, http.StatusBadGateway, "non_json", "Invalid response from the AI service (non-JSON).")
		return
	}

	// 7. schema
	res, err := types.Decode([]byte(txt))
	if err != nil {
		log.WithError(err).WithField("raw", raw).Error("model response violates the analysis schema")
		h.reject(c, http.StatusBadGateway, "schema_violation", "Invalid response from the AI service: "+err.Error())
		return
	}
	body, err := json.Marshal(res)
	if err != nil {
		h.internal(c, log, "encode analysis", err)
		return
	}

	// 8. cache store
	h.cacheSet(ctx, log, key, body)
	h.archiveSave(ctx, log, hash, declared, res)

	metrics.AnalysesTotal.WithLabelValues("ok").Inc()
	log.WithFields(logrus.Fields{
		"subject":    res.Subject.SubjectType,
		"detections": len(res.Detections),
	}).Info("analysis complete")
	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// CacheKey is the content-addressed cache key of an image: only the bytes
// count, never the filename or headers.
func CacheKey(image []byte) string {
	return CacheNamespace + ":" + util.SHA256Hex(image)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handle) cacheGet(ctx context.Context, log *logrus.Entry, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		log.WithError(err).Warn("cache get failed, treating as miss")
		return nil, false
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return b, true
}

func (h *Handle) cacheSet(ctx context.Context, log *logrus.Entry, key string, body []byte) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, key, body, h.cacheTTL); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		log.WithError(err).Warn("cache set failed")
	}
}

func (h *Handle) archiveSave(ctx context.Context, log *logrus.Entry, hash, contentType string, res *types.AnalysisResponse) {
	if h.archive == nil {
		return
	}
	if _, err := h.archive.Upsert(ctx, hash, h.modelName, contentType, res); err != nil {
		metrics.ArchiveErrorsTotal.Inc()
		log.WithError(err).Warn("archive write failed")
	}
}

// upstreamError maps a failed model call onto a status code.
func (h *Handle) upstreamError(c *gin.Context, log *logrus.Entry, err error) {
	var ae *analysis.Error
	if !errors.As(err, &ae) {
		if errors.Is(err, context.DeadlineExceeded) {
			log.WithError(err).Error("model call timed out")
			h.reject(c, http.StatusServiceUnavailable, "upstream_error", "AI service error: request timed out.")
			return
		}
		h.internal(c, log, "model call", err)
		return
	}

	log = log.WithError(err).WithField("kind", ae.Kind.String())
	switch ae.Kind {
	case analysis.KindPermissionDenied:
		log.Error("upstream rejected credentials")
		h.reject(c, http.StatusForbidden, "upstream_auth", "Authentication error with the Gemini API. Check the API key.")
	case analysis.KindInvalidArgument:
		log.Warn("upstream rejected the request")
		h.reject(c, http.StatusBadRequest, "upstream_invalid_argument", "Invalid argument sent to the Gemini API. Detail: "+analysis.Detail(err))
	case analysis.KindMalformedResponse:
		log.Error("upstream returned no usable content")
		h.reject(c, http.StatusBadGateway, "non_json", "Invalid response from the AI service: "+analysis.Detail(err))
	default:
		log.Error("upstream call failed")
		h.reject(c, http.StatusServiceUnavailable, "upstream_error", "AI service error (Google API): "+analysis.Detail(err))
	}
}

func (h *Handle) internal(c *gin.Context, log *logrus.Entry, op string, err error) {
	log.WithError(err).WithField("op", op).Error("unexpected error during analysis")
	h.reject(c, http.StatusInternalServerError, "internal", "Internal server error.")
}

func (h *Handle) reject(c *gin.Context, status int, outcome, msg string) {
	metrics.AnalysesTotal.WithLabelValues(outcome).Inc()
	detail(c, status, msg)
}
