package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pestai/api/internal/analysis"
	"pestai/api/internal/handle"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	opts.Log = log

	model := analysis.ModelFunc(func(context.Context, analysis.Input) (string, error) {
		panic("model must not be reached")
	})
	r, err := NewRouter(handle.New(handle.Deps{Model: model, Log: log}), opts)
	require.NoError(t, err)
	return r
}

func get(r http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r := newRouter(t, Options{})

	w := get(r, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "is operational")
	assert.NotEmpty(t, w.Header().Get(handle.RequestIDHeader))

	w = get(r, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = get(r, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pestai_http_requests_total")

	w = get(r, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, w.Body.String())
}

func TestAnalyzeRouteRejectsGet(t *testing.T) {
	r := newRouter(t, Options{})

	w := get(r, "/api/v8/analyze-image", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPanicBecomes500(t *testing.T) {
	r := newRouter(t, Options{})
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := get(r, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"Internal server error."}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	r := newRouter(t, Options{CORSAllowedOrigins: []string{"https://app.example.com"}})

	w := get(r, "/", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestInvalidTrustedProxies(t *testing.T) {
	_, err := NewRouter(handle.New(handle.Deps{}), Options{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}
