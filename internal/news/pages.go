package news

import (
	"context"
	"net/url"
	"strings"

	"github.com/hephaex/Barami/internal/clients"
	"github.com/hephaex/Barami/internal/live"
	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/pkg/models"

	"golang.org/x/sync/errgroup"
)

const (
	chartWidth  = 800
	chartHeight = 260
)

type page struct {
	title  string
	active string
	model  func(ctx context.Context, q url.Values, cacheOnly bool) any
	keys   func(q url.Values) []query.Key
	params func(q url.Values) url.Values
	watch  func(q url.Values) []live.Watch
}

func (h *Handler) pageTable() map[string]page {
	return map[string]page{
		"home": {
			title:  "Dashboard",
			active: "home",
			model: func(ctx context.Context, _ url.Values, cacheOnly bool) any {
				return h.homeModel(ctx, cacheOnly)
			},
			keys: func(url.Values) []query.Key {
				return []query.Key{keyStats, keyDaily, keyRecent, keyCategories}
			},
			params: func(url.Values) url.Values { return url.Values{} },
			watch: func(url.Values) []live.Watch {
				return []live.Watch{
					query.Subscribe(h.queries, keyStats, h.backend.Stats),
					query.Subscribe(h.queries, keyDaily, h.dailyFetcher()),
					query.Subscribe(h.queries, keyRecent, h.recentFetcher()),
					query.Subscribe(h.queries, keyCategories, h.backend.Categories),
				}
			},
		},
		"list": {
			title:  "News",
			active: "news",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.listModel(ctx, models.ParseNewsFilters(q), cacheOnly)
			},
			keys: func(q url.Values) []query.Key {
				return []query.Key{newsKey(models.ParseNewsFilters(q)), keyCategories}
			},
			params: func(q url.Values) url.Values { return models.ParseNewsFilters(q).Values() },
			watch: func(q url.Values) []live.Watch {
				f := models.ParseNewsFilters(q)
				return []live.Watch{
					query.Subscribe(h.queries, newsKey(f), h.newsFetcher(f)),
				}
			},
		},
		"detail": {
			title:  "Article",
			active: "news",
			model: func(ctx context.Context, q url.Values, cacheOnly bool) any {
				return h.detailModel(ctx, articleID(q), q, cacheOnly)
			},
			keys: func(q url.Values) []query.Key {
				return []query.Key{articleKey(articleID(q))}
			},
			params: func(q url.Values) url.Values {
				return url.Values{"id": {articleID(q)}}
			},
			watch: func(q url.Values) []live.Watch {
				id := articleID(q)
				return []live.Watch{
					query.Subscribe(h.queries, articleKey(id), h.articleFetcher(id), query.WithEnabled(id != "")),
				}
			},
		},
	}
}

func articleID(q url.Values) string {
	return strings.TrimSpace(q.Get("id"))
}

func (h *Handler) dailyFetcher() func(context.Context) ([]models.DailyStats, error) {
	return func(ctx context.Context) ([]models.DailyStats, error) {
		return h.backend.DailyStats(ctx, trendDays)
	}
}

func (h *Handler) recentFetcher() func(context.Context) ([]models.NewsArticle, error) {
	return func(ctx context.Context) ([]models.NewsArticle, error) {
		return h.backend.RecentNews(ctx, recentLimit)
	}
}

func (h *Handler) newsFetcher(f models.NewsFilters) func(context.Context) (*models.ArticlePage, error) {
	return func(ctx context.Context) (*models.ArticlePage, error) {
		return h.backend.News(ctx, f)
	}
}

func (h *Handler) articleFetcher(id string) func(context.Context) (*models.NewsArticle, error) {
	return func(ctx context.Context) (*models.NewsArticle, error) {
		return h.backend.Article(ctx, id)
	}
}

// listURL is the list page address for the given filters.
func listURL(f models.NewsFilters) string {
	v := f.Values()
	if len(v) == 0 {
		return "/news"
	}
	return "/news?" + v.Encode()
}

type CategoryLink struct {
	Name   string
	Count  int
	URL    string
	Active bool
}

// categoryLinks points each category at the list narrowed to it. The other
// filters in f are kept and the page goes back to the first.
func categoryLinks(f models.NewsFilters, categories []models.Category) []CategoryLink {
	out := make([]CategoryLink, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryLink{
			Name:   c.Name,
			Count:  c.Count,
			URL:    listURL(f.With(models.FilterCategory, c.Name)),
			Active: c.Name == f.Category,
		})
	}
	return out
}

func retryURL(path string, params url.Values) string {
	return view.RefreshURL(&url.URL{Path: path, RawQuery: params.Encode()})
}

type HomeModel struct {
	Panel      view.Panel
	Stats      models.Stats
	Categories []CategoryLink
	Chart      view.Chart
	Recent     []models.NewsArticle
}

// homeModel reads the four home queries in parallel. Stats and daily stats
// are required; categories and recent news render empty when missing.
func (h *Handler) homeModel(ctx context.Context, cacheOnly bool) HomeModel {
	var (
		stats      query.Result[*models.Stats]
		daily      query.Result[[]models.DailyStats]
		recent     query.Result[[]models.NewsArticle]
		categories query.Result[[]models.Category]
	)

	var g errgroup.Group
	g.Go(func() error {
		stats = query.Read(ctx, h.queries, keyStats, h.backend.Stats, cacheOnly)
		return nil
	})
	g.Go(func() error {
		daily = query.Read(ctx, h.queries, keyDaily, h.dailyFetcher(), cacheOnly)
		return nil
	})
	g.Go(func() error {
		recent = query.Read(ctx, h.queries, keyRecent, h.recentFetcher(), cacheOnly)
		return nil
	})
	g.Go(func() error {
		categories = query.Read(ctx, h.queries, keyCategories, h.backend.Categories, cacheOnly)
		return nil
	})
	_ = g.Wait()

	m := HomeModel{
		Panel: view.NewPanel("Loading dashboard...",
			view.StateFor(keyStats, stats),
			view.StateFor(keyDaily, daily),
		),
		Categories: categoryLinks(models.NewsFilters{}.Normalize(), categories.Data),
		Recent:     recent.Data,
		Chart:      view.DailyChart(daily.Data, chartWidth, chartHeight),
	}
	m.Panel.RetryURL = retryURL("/", nil)
	if stats.Data != nil {
		m.Stats = *stats.Data
	}
	return m
}

type ListModel struct {
	Panel         view.Panel
	Filters       models.NewsFilters
	Categories    []models.Category
	CategoryLinks []CategoryLink
	AllURL        string
	Articles      []models.NewsArticle
	Total      int
	Pagination view.Pagination
	PageURLs   map[int]string
	ClearURL   string
}

func (h *Handler) listModel(ctx context.Context, f models.NewsFilters, cacheOnly bool) ListModel {
	key := newsKey(f)

	var (
		articles   query.Result[*models.ArticlePage]
		categories query.Result[[]models.Category]
	)
	var g errgroup.Group
	g.Go(func() error {
		articles = query.Read(ctx, h.queries, key, h.newsFetcher(f), cacheOnly)
		return nil
	})
	g.Go(func() error {
		categories = query.Read(ctx, h.queries, keyCategories, h.backend.Categories, cacheOnly)
		return nil
	})
	_ = g.Wait()

	m := ListModel{
		Panel:         view.NewPanel("Loading news...", view.StateFor(key, articles)),
		Filters:       f,
		Categories:    categories.Data,
		CategoryLinks: categoryLinks(f, categories.Data),
		AllURL:        listURL(f.With(models.FilterCategory, "")),
		ClearURL:      listURL(f.Cleared()),
		PageURLs:      map[int]string{},
	}
	m.Panel.RetryURL = retryURL("/news", f.Values())

	if res := articles.Data; res != nil {
		m.Articles = res.Articles
		m.Total = res.Total
		m.Pagination = view.Paginate(f.Page, res.TotalPages)
		for n := 1; n <= m.Pagination.TotalPages; n++ {
			m.PageURLs[n] = listURL(f.WithPage(n))
		}
	}
	return m
}

type DetailModel struct {
	Panel    view.Panel
	Article  *models.NewsArticle
	NotFound bool
	BackURL  string
}

func (h *Handler) detailModel(ctx context.Context, id string, q url.Values, cacheOnly bool) DetailModel {
	m := DetailModel{BackURL: "/news"}
	if ref := q.Get("from"); strings.HasPrefix(ref, "/news") {
		m.BackURL = ref
	}
	if id == "" {
		m.NotFound = true
		return m
	}

	key := articleKey(id)
	res := query.Read(ctx, h.queries, key, h.articleFetcher(id), cacheOnly)
	if !res.HasData && clients.IsNotFound(res.Err) {
		m.NotFound = true
		return m
	}

	m.Panel = view.NewPanel("Loading article...", view.StateFor(key, res))
	m.Panel.RetryURL = retryURL("/news/"+url.PathEscape(id), nil)
	m.Article = res.Data
	if m.Article == nil && m.Panel.State == view.StateReady {
		m.NotFound = true
	}
	return m
}
