package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hephaex/Barami/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAdminClientLogsClampsLimit(t *testing.T) {
	var gotQuery []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/admin/logs", r.URL.Path)
		gotQuery = append(gotQuery, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, []models.LogEntry{})
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL+"/api", time.Second)
	ctx := context.Background()

	for _, limit := range []int{50, 1000, 5, 99999, 0} {
		_, err := c.Logs(ctx, models.LogFilter{Service: "api", Level: "error", Limit: limit})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"level=error&limit=50&service=api",
		"level=error&limit=1000&service=api",
		"level=error&limit=50&service=api",
		"level=error&limit=1000&service=api",
		"level=error&limit=100&service=api",
	}, gotQuery)
}

func TestAdminClientControlService(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL+"/api", time.Second)

	require.NoError(t, c.RestartService(context.Background(), "crawler-worker"))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/admin/services/crawler-worker/restart", path)

	err := c.ControlService(context.Background(), "redis", models.ServiceAction("kill"))
	assert.Error(t, err)
}

func TestAdminClientDecodesPayloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/status":
			writeJSON(w, http.StatusOK, models.SystemStatus{
				Overall: models.HealthDegraded,
				Services: []models.ServiceHealth{
					{Name: "postgres", Status: models.HealthHealthy, Uptime: 3600},
				},
				Metrics: models.SystemMetrics{CPU: models.CPUMetrics{Usage: 45.5, Cores: 8}},
			})
		case "/api/admin/services":
			writeJSON(w, http.StatusOK, []models.ServiceInfo{{ID: "api-server", Type: "api", Port: 8000}})
		case "/api/admin/metrics":
			writeJSON(w, http.StatusOK, []models.MetricData{{Name: "http_requests_total", Value: 12, Labels: map[string]string{"service": "api"}}})
		case "/api/admin/grafana/dashboards":
			writeJSON(w, http.StatusOK, []models.GrafanaDashboard{{UID: "system-overview", Title: "System Overview"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAdminClient(srv.URL+"/api/", time.Second)
	ctx := context.Background()

	status, err := c.SystemStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.HealthDegraded, status.Overall)
	assert.Equal(t, 8, status.Metrics.CPU.Cores)

	services, err := c.Services(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8000, services[0].Port)

	metrics, err := c.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, "api", metrics[0].Labels["service"])

	dashboards, err := c.GrafanaDashboards(ctx)
	require.NoError(t, err)
	assert.Equal(t, "system-overview", dashboards[0].UID)
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail preferred", http.StatusBadRequest, `{"detail":"bad filter","error":"x","message":"y"}`, "bad filter"},
		{"error field", http.StatusInternalServerError, `{"error":"Database error occurred","status":500}`, "Database error occurred"},
		{"message field", http.StatusConflict, `{"message":"already running"}`, "already running"},
		{"non json body", http.StatusBadGateway, `<html>bad gateway</html>`, "Bad Gateway"},
		{"not found", http.StatusNotFound, ``, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewAdminClient(srv.URL, time.Second).Services(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, Message(err))
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewAdminClient(url, time.Second).Services(context.Background())
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Zero(t, apiErr.StatusCode)
		assert.NotEmpty(t, Message(err))
		assert.True(t, Retryable(err))
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("boom")))
	assert.True(t, Retryable(&APIError{StatusCode: 503}))
	assert.True(t, Retryable(&APIError{StatusCode: 429}))
	assert.False(t, Retryable(&APIError{StatusCode: 404}))
	assert.False(t, Retryable(&APIError{StatusCode: 400}))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 404})))
	assert.Equal(t, "", Message(nil))
}

// articleBackend serves n technology articles the way the news API pages them.
func articleBackend(t *testing.T, n int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/news" {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "status": 404})
			return
		}
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))

		var articles []models.NewsArticle
		for i := (page - 1) * limit; i < n && i < page*limit; i++ {
			articles = append(articles, models.NewsArticle{
				ID:       strconv.Itoa(i),
				Title:    fmt.Sprintf("Article %d", i),
				Category: q.Get("category"),
			})
		}
		writeJSON(w, http.StatusOK, models.ArticlePage{
			Articles:   articles,
			Total:      n,
			Page:       page,
			Limit:      limit,
			TotalPages: (n + limit - 1) / limit,
		})
	}))
}

func TestNewsClientPagination(t *testing.T) {
	srv := articleBackend(t, 45)
	defer srv.Close()

	c := NewNewsClient(srv.URL+"/api", time.Second)
	page, err := c.News(context.Background(), models.NewsFilters{Category: "technology", Page: 2, Size: 20})
	require.NoError(t, err)

	assert.Len(t, page.Articles, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, "technology", page.Articles[0].Category)
	assert.Equal(t, "20", page.Articles[0].ID)

	last, err := c.News(context.Background(), models.NewsFilters{Category: "technology", Page: 3, Size: 20})
	require.NoError(t, err)
	assert.Len(t, last.Articles, 5)
}

func TestNewsClientQueryMapping(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		writeJSON(w, http.StatusOK, models.ArticlePage{Total: 0, Page: 1, Limit: 100})
	}))
	defer srv.Close()

	c := NewNewsClient(srv.URL, time.Second)
	_, err := c.News(context.Background(), models.NewsFilters{Search: " chips ", StartDate: "2024-01-01", Size: 500})
	require.NoError(t, err)

	assert.Equal(t, "limit=100&page=1&q=chips&start_date=2024-01-01", raw)
}

func TestNewsClientEnvelopes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stats":
			writeJSON(w, http.StatusOK, map[string]any{
				"total_articles":      1200,
				"total_crawled_today": 80,
				"success_rate":        97.5,
				"recent_stats":        []any{},
			})
		case "/api/stats/daily":
			assert.Equal(t, "30", r.URL.Query().Get("days"))
			writeJSON(w, http.StatusOK, map[string]any{
				"stats": []map[string]any{
					{"date": "2024-01-01", "total_crawled": 10, "success_count": 9, "failed_count": 1},
				},
				"total_days": 1,
			})
		case "/api/categories":
			writeJSON(w, http.StatusOK, map[string]any{
				"categories": []map[string]any{{"id": 1, "name": "technology", "article_count": 45}},
				"total":      1,
			})
		case "/api/news/abc":
			writeJSON(w, http.StatusOK, models.NewsArticle{ID: "abc", Title: "Hello"})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Article not found", "status": 404})
		}
	}))
	defer srv.Close()

	c := NewNewsClient(srv.URL+"/api", time.Second)
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), stats.TotalArticles)
	assert.Equal(t, 97.5, stats.SuccessRate)

	daily, err := c.DailyStats(ctx, 30)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, 10, daily[0].Count)
	assert.Equal(t, 1, daily[0].FailureCount)

	categories, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Category{ID: 1, Name: "technology", Count: 45}, categories[0])

	article, err := c.Article(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Hello", article.Title)

	_, err = c.Article(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Article not found", Message(err))

	_, err = c.Article(ctx, " ")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestReachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewNewsClient(srv.URL+"/api", time.Second)

	assert.NoError(t, c.Reachable(context.Background()))

	srv.Close()
	assert.Error(t, c.Reachable(context.Background()))
}
