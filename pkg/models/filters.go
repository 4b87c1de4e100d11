package models

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLogLimit = 100
	MinLogLimit     = 50
	MaxLogLimit     = 1000

	DefaultPageSize = 20
	MaxPageSize     = 100
)

var (
	LogLevels   = []string{"debug", "info", "warn", "error"}
	LogLimits   = []int{50, 100, 200, 500, 1000}
	LogServices = []string{"api", "crawler", "worker", "database", "opensearch", "nginx"}
)

// LogFilter selects log lines. Empty Service or Level means all.
type LogFilter struct {
	Service string
	Level   string
	Limit   int
}

// Normalize clamps Limit into [MinLogLimit, MaxLogLimit], defaulting to
// DefaultLogLimit, and drops an unknown level.
func (f LogFilter) Normalize() LogFilter {
	switch {
	case f.Limit == 0:
		f.Limit = DefaultLogLimit
	case f.Limit < MinLogLimit:
		f.Limit = MinLogLimit
	case f.Limit > MaxLogLimit:
		f.Limit = MaxLogLimit
	}
	f.Service = strings.TrimSpace(f.Service)
	f.Level = strings.ToLower(strings.TrimSpace(f.Level))
	if f.Level != "" && !contains(LogLevels, f.Level) {
		f.Level = ""
	}
	return f
}

func ParseLogFilter(q url.Values) LogFilter {
	limit, _ := strconv.Atoi(q.Get("limit"))
	return LogFilter{
		Service: q.Get("service"),
		Level:   q.Get("level"),
		Limit:   limit,
	}.Normalize()
}

// Values encodes the filter for a dashboard URL, leaving out defaults.
func (f LogFilter) Values() url.Values {
	v := url.Values{}
	if f.Service != "" {
		v.Set("service", f.Service)
	}
	if f.Level != "" {
		v.Set("level", f.Level)
	}
	if f.Limit != 0 && f.Limit != DefaultLogLimit {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// NewsFilters is the news list view state. It lives in the page URL.
type NewsFilters struct {
	Search    string
	Category  string
	StartDate string
	EndDate   string
	Page      int
	Size      int
}

func (f NewsFilters) Normalize() NewsFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Size == 0:
		f.Size = DefaultPageSize
	case f.Size < 1:
		f.Size = 1
	case f.Size > MaxPageSize:
		f.Size = MaxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

func ParseNewsFilters(q url.Values) NewsFilters {
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return NewsFilters{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Page:      page,
		Size:      size,
	}.Normalize()
}

// NewsFilter fields addressable through With.
const (
	FilterSearch    = "search"
	FilterCategory  = "category"
	FilterStartDate = "start_date"
	FilterEndDate   = "end_date"
)

// With returns a copy with one filter field changed. Any filter change
// returns to the first page.
func (f NewsFilters) With(field, value string) NewsFilters {
	switch field {
	case FilterSearch:
		f.Search = value
	case FilterCategory:
		f.Category = value
	case FilterStartDate:
		f.StartDate = value
	case FilterEndDate:
		f.EndDate = value
	default:
		return f
	}
	f.Page = 1
	return f
}

func (f NewsFilters) WithPage(page int) NewsFilters {
	f.Page = page
	return f.Normalize()
}

// Cleared keeps only the page size.
func (f NewsFilters) Cleared() NewsFilters {
	return NewsFilters{Page: 1, Size: f.Size}
}

// Active reports whether any filter beyond pagination is set.
func (f NewsFilters) Active() bool {
	return f.Search != "" || f.Category != "" || f.StartDate != "" || f.EndDate != ""
}

// Values encodes the filters for a dashboard URL. page is omitted when it
// is the first page and size when it is the default.
func (f NewsFilters) Values() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.StartDate != "" {
		v.Set("start_date", f.StartDate)
	}
	if f.EndDate != "" {
		v.Set("end_date", f.EndDate)
	}
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Size != 0 && f.Size != DefaultPageSize {
		v.Set("size", strconv.Itoa(f.Size))
	}
	return v
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
