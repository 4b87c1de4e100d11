package admin

import (
	"net/url"

	"github.com/hephaex/Barami/pkg/models"
)

// GrafanaPath is where the Grafana proxy is mounted.
const GrafanaPath = "/grafana"

type Dashboard struct {
	UID   string
	Title string
}

// builtinDashboards are provisioned with the stack and always offered.
var builtinDashboards = []Dashboard{
	{UID: "system-overview", Title: "System Overview"},
	{UID: "api-metrics", Title: "API Metrics"},
	{UID: "database-metrics", Title: "Database Metrics"},
	{UID: "opensearch-metrics", Title: "OpenSearch Metrics"},
	{UID: "crawler-metrics", Title: "Crawler Metrics"},
}

const defaultDashboard = "system-overview"

type TimeRange struct {
	Label string
	From  string
}

var timeRanges = []TimeRange{
	{Label: "Last 5 minutes", From: "now-5m"},
	{Label: "Last 15 minutes", From: "now-15m"},
	{Label: "Last 30 minutes", From: "now-30m"},
	{Label: "Last 1 hour", From: "now-1h"},
	{Label: "Last 3 hours", From: "now-3h"},
	{Label: "Last 6 hours", From: "now-6h"},
	{Label: "Last 12 hours", From: "now-12h"},
	{Label: "Last 24 hours", From: "now-24h"},
	{Label: "Last 7 days", From: "now-7d"},
}

const defaultRange = 3

// findRange looks a range up by label and falls back to the last hour.
func findRange(label string) TimeRange {
	for _, r := range timeRanges {
		if r.Label == label {
			return r
		}
	}
	return timeRanges[defaultRange]
}

// mergeDashboards appends fetched dashboards to the built-in list, skipping
// UIDs already present.
func mergeDashboards(fetched []models.GrafanaDashboard) []Dashboard {
	out := make([]Dashboard, len(builtinDashboards), len(builtinDashboards)+len(fetched))
	copy(out, builtinDashboards)
	for _, d := range fetched {
		if d.UID == "" || hasDashboard(out, d.UID) {
			continue
		}
		title := d.Title
		if title == "" {
			title = d.UID
		}
		out = append(out, Dashboard{UID: d.UID, Title: title})
	}
	return out
}

func hasDashboard(list []Dashboard, uid string) bool {
	for _, d := range list {
		if d.UID == uid {
			return true
		}
	}
	return false
}

// EmbedURL is the kiosk-mode URL of a dashboard behind the Grafana proxy.
func EmbedURL(uid string, r TimeRange) string {
	q := url.Values{}
	q.Set("orgId", "1")
	q.Set("refresh", "30s")
	q.Set("kiosk", "tv")
	q.Set("from", r.From)
	q.Set("to", "now")
	return GrafanaPath + "/d/" + url.PathEscape(uid) + "?" + q.Encode()
}
