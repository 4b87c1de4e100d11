package view

import (
	"net/url"
	"time"

	"github.com/hephaex/Barami/internal/clients"
	"github.com/hephaex/Barami/internal/query"
)

// PageState is what a page shows as a whole.
type PageState string

const (
	StateIdle    PageState = "idle"
	StateLoading PageState = "loading"
	StateReady   PageState = "ready"
	StateError   PageState = "error"
)

// StateOf derives the page state from its required queries. A failed query
// that still holds data counts as ready.
func StateOf(statuses ...query.Status) PageState {
	if len(statuses) == 0 {
		return StateIdle
	}
	ready := 0
	for _, s := range statuses {
		switch s {
		case query.StatusError:
			return StateError
		case query.StatusReady:
			ready++
		}
	}
	if ready == len(statuses) {
		return StateReady
	}
	for _, s := range statuses {
		if s == query.StatusLoading {
			return StateLoading
		}
	}
	return StateIdle
}

// QueryState is the per-query part of a page model.
type QueryState struct {
	Key       string
	Status    query.Status
	Error     string
	Stale     bool
	UpdatedAt time.Time
}

func StateFor[T any](key query.Key, r query.Result[T]) QueryState {
	return QueryState{
		Key:       key.String(),
		Status:    r.Status,
		Error:     clients.Message(r.Err),
		Stale:     r.Stale,
		UpdatedAt: r.UpdatedAt,
	}
}

// Panel is the loading, error and stale chrome around a page's content.
type Panel struct {
	State PageState
	Error string
	Stale bool
	// RetryKey is the key a retry control refetches over the live
	// connection. RetryURL reloads the page without one.
	RetryKey    string
	RetryURL    string
	LoadingText string
	UpdatedAt   time.Time
}

// NewPanel combines the required queries of a page. Errors on queries that
// still hold data only mark the panel stale.
func NewPanel(loadingText string, queries ...QueryState) Panel {
	p := Panel{LoadingText: loadingText}
	statuses := make([]query.Status, 0, len(queries))
	for _, q := range queries {
		statuses = append(statuses, q.Status)
		if q.Stale {
			p.Stale = true
		}
		if q.Error != "" && p.Error == "" {
			p.Error = q.Error
			p.RetryKey = q.Key
		}
		if q.UpdatedAt.After(p.UpdatedAt) {
			p.UpdatedAt = q.UpdatedAt
		}
	}
	p.State = StateOf(statuses...)
	if p.RetryKey == "" && len(queries) > 0 {
		p.RetryKey = queries[0].Key
	}
	return p
}

// RefreshURL is u with refresh=1 added, keeping the other parameters.
func RefreshURL(u *url.URL) string {
	q := u.Query()
	q.Set("refresh", "1")
	return u.Path + "?" + q.Encode()
}
