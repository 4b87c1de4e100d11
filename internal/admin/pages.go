package admin

import (
	"context"
	"net/url"
	"strings"

	"github.com/hephaex/Barami/internal/clients"
	"github.com/hephaex/Barami/internal/live"
	"github.com/hephaex/Barami/internal/logexport"
	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/pkg/models"
)

// page ties a route to its data. model reads the page's queries; with
// cacheOnly set it renders whatever the live session's subscriptions have
// loaded.
type page struct {
	title  string
	path   string
	model  func(ctx context.Context, q url.Values, cacheOnly bool) any
	keys   func(q url.Values) []query.Key
	params func(q url.Values) url.Values
	// live reports whether the page keeps a websocket open; nil never.
	live  func(q url.Values) bool
	watch func(q url.Values) []live.Watch
}

func always(url.Values) bool { return true }

func noParams(url.Values) url.Values { return url.Values{} }

func (h *Handler) pageTable() map[string]page {
	return map[string]page{
		"overview": {
			title: "Overview",
			path:  "/admin",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.overviewModel(ctx, cacheOnly)
			},
			keys:   func(url.Values) []query.Key { return []query.Key{keyStatus} },
			params: noParams,
			live:   always,
			watch: func(url.Values) []live.Watch {
				return []live.Watch{
					query.Subscribe(h.queries, keyStatus, h.backend.SystemStatus, query.WithRefetchInterval(statusInterval)),
				}
			},
		},
		"services": {
			title: "Services",
			path:  "/admin/services",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.servicesModel(ctx, cacheOnly)
			},
			keys:   func(url.Values) []query.Key { return []query.Key{keyServices} },
			params: noParams,
			live:   always,
			watch: func(url.Values) []live.Watch {
				return []live.Watch{
					query.Subscribe(h.queries, keyServices, h.backend.Services, query.WithRefetchInterval(servicesInterval)),
				}
			},
		},
		"logs": {
			title: "Logs",
			path:  "/admin/logs",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.logsModel(ctx, models.ParseLogFilter(q), cacheOnly)
			},
			keys: func(q url.Values) []query.Key {
				return []query.Key{logsKey(models.ParseLogFilter(q))}
			},
			params: func(q url.Values) url.Values { return models.ParseLogFilter(q).Values() },
			live:   always,
			watch: func(q url.Values) []live.Watch {
				f := models.ParseLogFilter(q)
				return []live.Watch{
					query.Subscribe(h.queries, logsKey(f), h.logsFetcher(f), query.WithRefetchInterval(logsInterval)),
				}
			},
		},
		"metrics": {
			title: "Metrics",
			path:  "/admin/metrics",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.metricsModel(ctx, showPrometheus(q), cacheOnly)
			},
			keys:   func(url.Values) []query.Key { return []query.Key{keyMetrics} },
			params: noParams,
			live: func(q url.Values) bool {
				return !showPrometheus(q)
			},
			watch: func(url.Values) []live.Watch {
				return []live.Watch{
					query.Subscribe(h.queries, keyMetrics, h.backend.Metrics, query.WithRefetchInterval(metricsInterval)),
				}
			},
		},
		"grafana": {
			title: "Grafana",
			path:  "/admin/grafana",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.grafanaModel(ctx, q)
			},
			keys:   func(url.Values) []query.Key { return []query.Key{keyGrafana} },
			params: noParams,
		},
	}
}

func (h *Handler) logsFetcher(f models.LogFilter) func(context.Context) ([]models.LogEntry, error) {
	return func(ctx context.Context) ([]models.LogEntry, error) {
		return h.backend.Logs(ctx, f)
	}
}

func retryURL(path string, params url.Values) string {
	return view.RefreshURL(&url.URL{Path: path, RawQuery: params.Encode()})
}

type QuickLink struct {
	Label string
	Href  string
	Color string
}

var quickLinks = []QuickLink{
	{Label: "Grafana", Href: "/admin/grafana", Color: "orange"},
	{Label: "Prometheus", Href: "/admin/metrics", Color: "red"},
	{Label: "Logs", Href: "/admin/logs", Color: "blue"},
	{Label: "Services", Href: "/admin/services", Color: "green"},
}

type OverviewModel struct {
	Panel      view.Panel
	Status     *models.SystemStatus
	Bars       []view.UsageBar
	QuickLinks []QuickLink
}

func (h *Handler) overviewModel(ctx context.Context, cacheOnly bool) OverviewModel {
	res := query.Read(ctx, h.queries, keyStatus, h.backend.SystemStatus, cacheOnly)

	m := OverviewModel{
		Panel:      view.NewPanel("Loading system status...", view.StateFor(keyStatus, res)),
		QuickLinks: quickLinks,
	}
	m.Panel.RetryURL = retryURL("/admin", nil)
	if res.HasData && res.Data != nil {
		m.Status = res.Data
		m.Bars = view.ResourceBars(res.Data.Metrics)
	} else if m.Panel.State == view.StateReady {
		m.Panel.State = view.StateError
		m.Panel.Error = "Failed to load system status"
	}
	return m
}

type ActionButton struct {
	Label    string
	Color    string
	URL      string
	Disabled bool
}

type ServiceRow struct {
	models.ServiceInfo
	Style   view.Style
	Pending bool
	Actions []ActionButton
}

type ServiceGroupRow struct {
	Type     string
	Services []ServiceRow
}

type ServicesModel struct {
	Panel  view.Panel
	Groups []ServiceGroupRow
}

var actionButtons = []struct {
	action models.ServiceAction
	label  string
	color  string
}{
	{models.ActionStart, "Start", "green"},
	{models.ActionStop, "Stop", "red"},
	{models.ActionRestart, "Restart", "yellow"},
}

func (h *Handler) servicesModel(ctx context.Context, cacheOnly bool) ServicesModel {
	res := query.Read(ctx, h.queries, keyServices, h.backend.Services, cacheOnly)

	m := ServicesModel{
		Panel: view.NewPanel("Loading services...", view.StateFor(keyServices, res)),
	}
	m.Panel.RetryURL = retryURL("/admin/services", nil)

	for _, g := range view.GroupServices(res.Data) {
		row := ServiceGroupRow{Type: g.Type}
		for _, s := range g.Services {
			pending := h.control.IsPendingTarget(s.ID)
			sr := ServiceRow{
				ServiceInfo: s,
				Style:       view.ServiceStyle(s.Status),
				Pending:     pending,
			}
			for _, b := range actionButtons {
				sr.Actions = append(sr.Actions, ActionButton{
					Label:    b.label,
					Color:    b.color,
					URL:      "/admin/services/" + url.PathEscape(s.ID) + "/" + string(b.action),
					Disabled: pending || !b.action.Allowed(s.Status),
				})
			}
			row.Services = append(row.Services, sr)
		}
		m.Groups = append(m.Groups, row)
	}
	return m
}

type LogRow struct {
	models.LogEntry
	MetadataJSON string
}

type LogsModel struct {
	Panel        view.Panel
	Filter       models.LogFilter
	FilterActive bool
	Entries      []LogRow
	Stats        view.LogStats
	Levels       []string
	Limits       []int
	Services     []string
	ExportURL    string
}

func (h *Handler) logsModel(ctx context.Context, f models.LogFilter, cacheOnly bool) LogsModel {
	key := logsKey(f)
	res := query.Read(ctx, h.queries, key, h.logsFetcher(f), cacheOnly)

	m := LogsModel{
		Panel:        view.NewPanel("Loading logs...", view.StateFor(key, res)),
		Filter:       f,
		FilterActive: f.Service != "" || f.Level != "" || f.Limit != models.DefaultLogLimit,
		Stats:        view.CountLogs(res.Data),
		Levels:       models.LogLevels,
		Limits:       models.LogLimits,
		Services:     models.LogServices,
		ExportURL:    "/admin/logs/export",
	}
	if params := f.Values(); len(params) > 0 {
		m.ExportURL += "?" + params.Encode()
	}
	m.Panel.RetryURL = retryURL("/admin/logs", f.Values())

	for _, e := range res.Data {
		row := LogRow{LogEntry: e}
		if e.Metadata != nil {
			row.MetadataJSON = logexport.PrettyJSON(e.Metadata)
		}
		m.Entries = append(m.Entries, row)
	}
	return m
}

type MetricRow struct {
	models.MetricData
	Trend view.Trend
}

type MetricsModel struct {
	Panel          view.Panel
	Rows           []MetricRow
	Empty          bool
	ShowPrometheus bool
	PrometheusURL  string
}

func showPrometheus(q url.Values) bool {
	v := strings.ToLower(q.Get("prometheus"))
	return v == "1" || v == "true"
}

func (h *Handler) metricsModel(ctx context.Context, prometheus, cacheOnly bool) MetricsModel {
	m := MetricsModel{
		ShowPrometheus: prometheus,
		PrometheusURL:  h.opts.PrometheusPath,
	}
	if prometheus {
		m.Panel = view.Panel{State: view.StateReady}
		return m
	}

	res := query.Read(ctx, h.queries, keyMetrics, h.backend.Metrics, cacheOnly)
	m.Panel = view.NewPanel("Loading metrics...", view.StateFor(keyMetrics, res))
	m.Panel.RetryURL = retryURL("/admin/metrics", nil)
	m.Empty = len(res.Data) == 0

	for _, d := range res.Data {
		trend := view.TrendNone
		if res.HasPrevious {
			trend = view.MetricTrend(res.Previous, d)
		}
		m.Rows = append(m.Rows, MetricRow{MetricData: d, Trend: trend})
	}
	return m
}

type GrafanaModel struct {
	Dashboards []Dashboard
	Selected   string
	Range      string
	Ranges     []TimeRange
	EmbedURL   string
	// Error is set when the dashboard list could not be loaded; the built-in
	// dashboards are still offered.
	Error string
}

func (h *Handler) grafanaModel(ctx context.Context, q url.Values) GrafanaModel {
	res := query.Fetch(ctx, h.queries, keyGrafana, h.backend.GrafanaDashboards)

	m := GrafanaModel{
		Dashboards: mergeDashboards(res.Data),
		Ranges:     timeRanges,
	}
	if res.Err != nil && !res.HasData {
		m.Error = clients.Message(res.Err)
	}

	m.Selected = defaultDashboard
	if uid := q.Get("dashboard"); uid != "" && hasDashboard(m.Dashboards, uid) {
		m.Selected = uid
	}
	rng := findRange(q.Get("range"))
	m.Range = rng.Label
	m.EmbedURL = EmbedURL(m.Selected, rng)
	return m
}
