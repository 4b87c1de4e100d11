package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hephaex/Barami/pkg/config"
	"github.com/hephaex/Barami/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingModule struct{}

func (pingModule) Register(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.POST("/limited", RateLimit(1, 2), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func newTestServer(checks ...HealthCheck) *Server {
	cfg := &config.Config{App: config.AdminDashboard, Environment: "test"}
	return NewServer(cfg, metrics.New("test_dashboard"), checks, pingModule{})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []HealthCheck
		code   int
		status string
	}{
		{"no dependencies", nil, http.StatusOK, "healthy"},
		{"all connected", []HealthCheck{{Name: "backend", Check: ok}, {Name: "redis", Check: ok}}, http.StatusOK, "healthy"},
		{"backend down", []HealthCheck{{Name: "backend", Check: fail}, {Name: "redis", Check: ok}}, http.StatusOK, "degraded"},
		{"critical down", []HealthCheck{{Name: "backend", Check: fail, Critical: true}}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(newTestServer(tt.checks...), httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tt.code, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, "admin-dashboard", body["app"])
			for _, c := range tt.checks {
				assert.Contains(t, []any{"connected", "disconnected"}, body[c.Name])
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer()

	t.Run("generated", func(t *testing.T) {
		w := serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := serve(s, req)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()
	serve(s, httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_dashboard_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	w := serve(newTestServer(), httptest.NewRequest(http.MethodOptions, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticAssets(t *testing.T) {
	w := serve(newTestServer(), httptest.NewRequest(http.MethodGet, "/static/live.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "WebSocket")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := serve(s, httptest.NewRequest(http.MethodPost, "/limited", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	t.Run("disabled", func(t *testing.T) {
		r := gin.New()
		r.POST("/x", RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
			assert.Equal(t, http.StatusNoContent, w.Code)
		}
	})
}
