package view

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupServices(t *testing.T) {
	services := []models.ServiceInfo{
		{ID: "api-1", Type: "api"},
		{ID: "crawler-1", Type: "worker"},
		{ID: "postgres", Type: "database"},
		{ID: "redis", Type: "cache"},
		{ID: "opensearch", Type: "database"},
		{ID: "prometheus", Type: "monitoring"},
	}

	groups := GroupServices(services)

	counts := map[string]int{}
	var order []string
	for _, g := range groups {
		counts[g.Type] = len(g.Services)
		order = append(order, g.Type)
	}
	assert.Equal(t, map[string]int{"api": 1, "worker": 1, "database": 2, "cache": 1, "monitoring": 1}, counts)
	assert.Equal(t, []string{"api", "worker", "database", "cache", "monitoring"}, order)
	assert.Equal(t, "postgres", groups[2].Services[0].ID)
	assert.Equal(t, "opensearch", groups[2].Services[1].ID)
}

func TestUsageThresholds(t *testing.T) {
	tests := []struct {
		pct   float64
		color string
		width float64
	}{
		{pct: 0, color: "green", width: 0},
		{pct: 74.9, color: "green", width: 74.9},
		{pct: 75, color: "yellow", width: 75},
		{pct: 89.9, color: "yellow", width: 89.9},
		{pct: 90, color: "red", width: 90},
		{pct: 140, color: "red", width: 100},
		{pct: -5, color: "green", width: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.color, UsageColor(tt.pct), "pct %v", tt.pct)
		assert.Equal(t, tt.width, BarWidth(tt.pct), "pct %v", tt.pct)
	}
}

func TestResourceBars(t *testing.T) {
	bars := ResourceBars(models.SystemMetrics{
		CPU:    models.CPUMetrics{Usage: 45.5, Cores: 8},
		Memory: models.UsageMetrics{Used: 12.4, Total: 16, Percentage: 77.5},
		Disk:   models.UsageMetrics{Used: 230, Total: 250, Percentage: 92},
	})

	require.Len(t, bars, 3)
	assert.Equal(t, 800.0, bars[0].Total)
	assert.Equal(t, "green", bars[0].Color)
	assert.Equal(t, "yellow", bars[1].Color)
	assert.Equal(t, "red", bars[2].Color)
	assert.Equal(t, "GB", bars[2].Unit)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0m", FormatUptime(0))
	assert.Equal(t, "59m", FormatUptime(59*60+59))
	assert.Equal(t, "1h 0m", FormatUptime(3600))
	assert.Equal(t, "23h 59m", FormatUptime(86399))
	assert.Equal(t, "1d 0h", FormatUptime(86400))
	assert.Equal(t, "5d 3h", FormatUptime(5*86400+3*3600+1200))
}

func TestStyles(t *testing.T) {
	assert.Equal(t, "green", HealthStyle("healthy").Class)
	assert.Equal(t, "yellow", HealthStyle("degraded").Class)
	assert.Equal(t, "red", HealthStyle("down").Class)
	assert.Equal(t, "Unknown", HealthStyle("").Label)

	assert.Equal(t, "Running", ServiceStyle("running").Label)
	assert.Equal(t, "yellow", ServiceStyle("restarting").Class)

	assert.Equal(t, "WARN", LevelStyle("warning").Label)
	assert.Equal(t, "red", LevelStyle("ERROR").Class)

	assert.Equal(t, "purple", CategoryColor("Technology"))
	assert.Equal(t, "gray", CategoryColor("weather"))
	assert.Equal(t, "red", SentimentColor("negative"))
}

func TestCountLogs(t *testing.T) {
	stats := CountLogs([]models.LogEntry{
		{Level: "info"}, {Level: "error"}, {Level: "warn"}, {Level: "info"}, {Level: "debug"},
	})
	assert.Equal(t, LogStats{Total: 5, Errors: 1, Warnings: 1, Info: 2}, stats)
}

func TestMetricTrend(t *testing.T) {
	previous := []models.MetricData{
		{Name: "http_requests", Value: 10, Labels: map[string]string{"route": "/a", "method": "GET"}},
		{Name: "http_requests", Value: 50, Labels: map[string]string{"route": "/b"}},
		{Name: "queue_depth", Value: 3},
	}

	assert.Equal(t, TrendUp, MetricTrend(previous, models.MetricData{Name: "http_requests", Value: 12, Labels: map[string]string{"method": "GET", "route": "/a"}}))
	assert.Equal(t, TrendDown, MetricTrend(previous, models.MetricData{Name: "http_requests", Value: 40, Labels: map[string]string{"route": "/b"}}))
	assert.Equal(t, TrendFlat, MetricTrend(previous, models.MetricData{Name: "queue_depth", Value: 3}))
	assert.Equal(t, TrendNone, MetricTrend(previous, models.MetricData{Name: "cpu", Value: 3}))
	assert.Equal(t, TrendNone, MetricTrend(nil, models.MetricData{Name: "queue_depth", Value: 3}))
	assert.Empty(t, TrendNone.Arrow())
}

func TestPaginate(t *testing.T) {
	numbers := func(p Pagination) []int {
		var out []int
		for _, item := range p.Items {
			if item.Gap {
				out = append(out, 0)
				continue
			}
			out = append(out, item.Number)
		}
		return out
	}

	t.Run("few pages", func(t *testing.T) {
		p := Paginate(2, 3)
		assert.Equal(t, []int{1, 2, 3}, numbers(p))
		assert.True(t, p.HasPrev)
		assert.True(t, p.HasNext)
	})

	t.Run("window with gaps", func(t *testing.T) {
		p := Paginate(10, 20)
		assert.Equal(t, []int{1, 0, 8, 9, 10, 11, 12, 0, 20}, numbers(p))
	})

	t.Run("first page", func(t *testing.T) {
		p := Paginate(1, 10)
		assert.Equal(t, []int{1, 2, 3, 0, 10}, numbers(p))
		assert.False(t, p.HasPrev)
	})

	t.Run("clamps out of range", func(t *testing.T) {
		p := Paginate(9, 3)
		assert.Equal(t, 3, p.Page)
		assert.False(t, p.HasNext)
	})

	t.Run("no pages", func(t *testing.T) {
		assert.Empty(t, Paginate(1, 0).Items)
	})
}

func TestDailyChart(t *testing.T) {
	stats := []models.DailyStats{
		{Date: "2024-01-03", Count: 30, SuccessCount: 25},
		{Date: "2024-01-01", Count: 10, SuccessCount: 9},
		{Date: "2024-01-02", Count: 20, SuccessCount: 20},
	}

	c := DailyChart(stats, 600, 240)

	assert.False(t, c.Empty)
	assert.Equal(t, 30, c.Max)
	require.Len(t, c.Labels, 3)
	assert.Equal(t, "01-01", c.Labels[0].Text)
	assert.Equal(t, "01-03", c.Labels[2].Text)
	assert.True(t, strings.HasPrefix(c.TotalLine, "M32.0,"))
	assert.True(t, strings.HasSuffix(c.TotalArea, " Z"))
	assert.Equal(t, "2024-01-03", stats[0].Date, "input order is untouched")

	assert.True(t, DailyChart(nil, 600, 240).Empty)
}

func TestDailyChartLabelsAreThinned(t *testing.T) {
	var stats []models.DailyStats
	for d := 1; d <= 30; d++ {
		stats = append(stats, models.DailyStats{Date: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), Count: d})
	}
	c := DailyChart(stats, 600, 240)
	assert.LessOrEqual(t, len(c.Labels), 6)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", RelativeTime("2024-01-15T11:59:30Z", now))
	assert.Equal(t, "1 minute ago", RelativeTime("2024-01-15T11:59:00Z", now))
	assert.Equal(t, "3 hours ago", RelativeTime("2024-01-15T09:00:00Z", now))
	assert.Equal(t, "2 days ago", RelativeTime("2024-01-13T12:00:00Z", now))
	assert.Equal(t, "not a time", RelativeTime("not a time", now))
}

func TestStateOf(t *testing.T) {
	tests := []struct {
		name     string
		statuses []query.Status
		want     PageState
	}{
		{"no queries", nil, StateIdle},
		{"all ready", []query.Status{query.StatusReady, query.StatusReady}, StateReady},
		{"one loading", []query.Status{query.StatusReady, query.StatusLoading}, StateLoading},
		{"error wins", []query.Status{query.StatusLoading, query.StatusError}, StateError},
		{"idle", []query.Status{query.StatusIdle}, StateIdle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(tt.statuses...))
		})
	}
}

func TestNewPanel(t *testing.T) {
	updated := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	p := NewPanel("Loading...",
		QueryState{Key: `["stats"]`, Status: query.StatusReady, Stale: true, Error: "boom", UpdatedAt: updated},
		QueryState{Key: `["categories"]`, Status: query.StatusReady},
	)

	assert.Equal(t, StateReady, p.State)
	assert.True(t, p.Stale)
	assert.Equal(t, "boom", p.Error)
	assert.Equal(t, `["stats"]`, p.RetryKey)
	assert.Equal(t, updated, p.UpdatedAt)
}

func TestRefreshURL(t *testing.T) {
	u, err := url.Parse("/admin/logs?level=error&service=api")
	require.NoError(t, err)
	assert.Equal(t, "/admin/logs?level=error&refresh=1&service=api", RefreshURL(u))
}

func TestRenderer(t *testing.T) {
	for _, app := range []string{"admin", "news"} {
		t.Run(app, func(t *testing.T) {
			r, err := New(app)
			require.NoError(t, err)
			assert.NotEmpty(t, r.pages)
		})
	}

	r, err := New("admin")
	require.NoError(t, err)

	t.Run("error state", func(t *testing.T) {
		html, err := r.FragmentString("overview", "state", Panel{State: StateError, Error: "Network Error", RetryKey: `["systemStatus"]`})
		require.NoError(t, err)
		assert.Contains(t, html, "Network Error")
		assert.Contains(t, html, "Retry")
	})

	t.Run("loading state", func(t *testing.T) {
		html, err := r.FragmentString("overview", "state", Panel{State: StateLoading, LoadingText: "Loading system status..."})
		require.NoError(t, err)
		assert.Contains(t, html, "Loading system status...")
	})

	t.Run("unknown page", func(t *testing.T) {
		_, err := r.FragmentString("missing", "state", Panel{})
		assert.Error(t, err)
	})

	t.Run("unknown app", func(t *testing.T) {
		_, err := New("billing")
		assert.Error(t, err)
	})
}

func TestStaticFS(t *testing.T) {
	for _, name := range []string{"app.css", "live.js"} {
		_, err := fs.Stat(StaticFS(), name)
		assert.NoError(t, err, name)
	}
}
