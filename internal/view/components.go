package view

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hephaex/Barami/pkg/models"
)

// Style is the visual treatment of a status value.
type Style struct {
	Label string
	Class string
	Icon  string
}

func HealthStyle(status string) Style {
	switch status {
	case models.HealthHealthy:
		return Style{Label: "Healthy", Class: "green", Icon: "●"}
	case models.HealthDegraded:
		return Style{Label: "Degraded", Class: "yellow", Icon: "▲"}
	case models.HealthDown:
		return Style{Label: "Down", Class: "red", Icon: "✕"}
	}
	return Style{Label: "Unknown", Class: "gray", Icon: "?"}
}

func ServiceStyle(status string) Style {
	switch status {
	case models.ServiceRunning:
		return Style{Label: "Running", Class: "green", Icon: "▶"}
	case models.ServiceStopped:
		return Style{Label: "Stopped", Class: "gray", Icon: "■"}
	case models.ServiceRestarting:
		return Style{Label: "Restarting", Class: "yellow", Icon: "↻"}
	}
	return Style{Label: "Unknown", Class: "gray", Icon: "?"}
}

func LevelStyle(level string) Style {
	switch strings.ToLower(level) {
	case "debug":
		return Style{Label: "DEBUG", Class: "gray"}
	case "info":
		return Style{Label: "INFO", Class: "blue"}
	case "warn", "warning":
		return Style{Label: "WARN", Class: "yellow"}
	case "error":
		return Style{Label: "ERROR", Class: "red"}
	}
	return Style{Label: strings.ToUpper(level), Class: "gray"}
}

// UsageColor maps a utilisation percentage to a threshold colour.
func UsageColor(pct float64) string {
	switch {
	case pct >= 90:
		return "red"
	case pct >= 75:
		return "yellow"
	}
	return "green"
}

// BarWidth is the fill width of a usage bar, capped to [0, 100].
func BarWidth(pct float64) float64 {
	return math.Max(0, math.Min(pct, 100))
}

type UsageBar struct {
	Label   string
	Used    float64
	Total   float64
	Unit    string
	Percent float64
	Color   string
	Width   float64
}

func NewUsageBar(label string, used, total float64, unit string, pct float64) UsageBar {
	return UsageBar{
		Label:   label,
		Used:    used,
		Total:   total,
		Unit:    unit,
		Percent: pct,
		Color:   UsageColor(pct),
		Width:   BarWidth(pct),
	}
}

// ResourceBars renders CPU as usage over cores*100 and memory and disk in GB.
func ResourceBars(m models.SystemMetrics) []UsageBar {
	return []UsageBar{
		NewUsageBar("CPU", m.CPU.Usage, float64(m.CPU.Cores*100), "%", m.CPU.Usage),
		NewUsageBar("Memory", m.Memory.Used, m.Memory.Total, "GB", m.Memory.Percentage),
		NewUsageBar("Disk", m.Disk.Used, m.Disk.Total, "GB", m.Disk.Percentage),
	}
}

// FormatUptime renders seconds as "Xd Yh", "Xh Ym" or "Xm".
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

var categoryColors = map[string]string{
	"politics":      "red",
	"economy":       "blue",
	"society":       "green",
	"technology":    "purple",
	"culture":       "pink",
	"international": "yellow",
	"sports":        "orange",
}

func CategoryColor(category string) string {
	if c, ok := categoryColors[strings.ToLower(category)]; ok {
		return c
	}
	return "gray"
}

func SentimentColor(sentiment string) string {
	switch strings.ToLower(sentiment) {
	case "positive":
		return "green"
	case "negative":
		return "red"
	}
	return "gray"
}

type LogStats struct {
	Total    int
	Errors   int
	Warnings int
	Info     int
}

func CountLogs(logs []models.LogEntry) LogStats {
	s := LogStats{Total: len(logs)}
	for _, l := range logs {
		switch strings.ToLower(l.Level) {
		case "error":
			s.Errors++
		case "warn", "warning":
			s.Warnings++
		case "info":
			s.Info++
		}
	}
	return s
}

type ServiceGroup struct {
	Type     string
	Services []models.ServiceInfo
}

// GroupServices buckets services by type. Groups appear in the order their
// type is first seen and keep the input order inside each group.
func GroupServices(services []models.ServiceInfo) []ServiceGroup {
	index := make(map[string]int)
	var groups []ServiceGroup
	for _, s := range services {
		i, ok := index[s.Type]
		if !ok {
			i = len(groups)
			index[s.Type] = i
			groups = append(groups, ServiceGroup{Type: s.Type})
		}
		groups[i].Services = append(groups[i].Services, s)
	}
	return groups
}

type Trend int

const (
	TrendNone Trend = iota
	TrendUp
	TrendDown
	TrendFlat
)

func (t Trend) Arrow() string {
	switch t {
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	case TrendFlat:
		return "→"
	}
	return ""
}

func (t Trend) Class() string {
	switch t {
	case TrendUp:
		return "green"
	case TrendDown:
		return "red"
	}
	return "gray"
}

// MetricTrend compares m to the sample with the same name and labels in the
// previous snapshot. Without a matching sample there is no trend.
func MetricTrend(previous []models.MetricData, m models.MetricData) Trend {
	id := metricID(m)
	for _, p := range previous {
		if metricID(p) != id {
			continue
		}
		switch {
		case m.Value > p.Value:
			return TrendUp
		case m.Value < p.Value:
			return TrendDown
		}
		return TrendFlat
	}
	return TrendNone
}

func metricID(m models.MetricData) string {
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(m.Name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(m.Labels[k])
	}
	return b.String()
}

// PageItem is one pagination control; Gap marks an ellipsis.
type PageItem struct {
	Number  int
	Current bool
	Gap     bool
}

type Pagination struct {
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	Items      []PageItem
}

// Paginate shows the first and last page plus two pages either side of the
// current one, with gaps between.
func Paginate(page, totalPages int) Pagination {
	if totalPages < 1 {
		return Pagination{Page: 1, TotalPages: 0}
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	p := Pagination{
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}

	last := 0
	for n := 1; n <= totalPages; n++ {
		if n != 1 && n != totalPages && (n < page-2 || n > page+2) {
			continue
		}
		if last != 0 && n > last+1 {
			p.Items = append(p.Items, PageItem{Gap: true})
		}
		p.Items = append(p.Items, PageItem{Number: n, Current: n == page})
		last = n
	}
	return p
}

// FormatTimestamp renders an RFC 3339 timestamp in local display form,
// falling back to the raw string.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

// RelativeTime renders how long ago ts was, e.g. "5 minutes ago".
func RelativeTime(ts string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute") + " ago"
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour") + " ago"
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day") + " ago"
	}
	return t.Format("2006-01-02")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Take returns at most n leading items.
func Take(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
