// Package news serves the news dashboard: collection stats, the article
// list with its filters and the article detail page.
package news

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/hephaex/Barami/internal/live"
	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/pkg/logger"
	"github.com/hephaex/Barami/pkg/models"

	"github.com/gin-gonic/gin"
)

// Backend is the news REST API. clients.NewsClient implements it.
type Backend interface {
	Stats(ctx context.Context) (*models.Stats, error)
	DailyStats(ctx context.Context, days int) ([]models.DailyStats, error)
	Categories(ctx context.Context) ([]models.Category, error)
	News(ctx context.Context, filters models.NewsFilters) (*models.ArticlePage, error)
	RecentNews(ctx context.Context, limit int) ([]models.NewsArticle, error)
	Article(ctx context.Context, id string) (*models.NewsArticle, error)
}

const (
	trendDays   = 30
	recentLimit = 10
)

var (
	keyStats      = query.NewKey("stats")
	keyDaily      = query.NewKey("dailyStats", trendDays)
	keyRecent     = query.NewKey("recentNews", recentLimit)
	keyCategories = query.NewKey("categories")
)

func newsKey(f models.NewsFilters) query.Key {
	return query.NewKey("news", f.Search, f.Category, f.StartDate, f.EndDate, f.Page, f.Size)
}

func articleKey(id string) query.Key {
	return query.NewKey("article", id)
}

type Options struct {
	// RenderWait bounds how long a page request waits for data before it
	// renders the loading state and leaves the rest to the live session.
	RenderWait time.Duration
}

type Handler struct {
	backend Backend
	queries *query.Client
	render  *view.Renderer
	hub     *live.Hub
	opts    Options
	pages   map[string]page
	now     func() time.Time
}

func NewHandler(backend Backend, queries *query.Client, render *view.Renderer, hub *live.Hub, opts Options) *Handler {
	if opts.RenderWait <= 0 {
		opts.RenderWait = 3 * time.Second
	}
	h := &Handler{
		backend: backend,
		queries: queries,
		render:  render,
		hub:     hub,
		opts:    opts,
		now:     time.Now,
	}
	h.pages = h.pageTable()
	return h
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.pageHandler("home"))
	r.GET("/news", h.pageHandler("list"))
	r.GET("/news/:id", h.pageHandler("detail"))

	r.GET("/fragments/:page", h.handleFragment)
	r.GET("/ws", h.handleLive)
}

// pageQuery is the request query with the article id from the path merged in.
func pageQuery(c *gin.Context) url.Values {
	q := c.Request.URL.Query()
	if id := c.Param("id"); id != "" {
		q.Set("id", id)
	}
	return q
}

func (h *Handler) pageHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.pages[name]
		q := pageQuery(c)
		if q.Get("refresh") != "" {
			h.queries.Invalidate(p.keys(q)...)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RenderWait)
		defer cancel()

		var buf bytes.Buffer
		err := h.render.Page(&buf, name, view.Page{
			Title:   p.title,
			Active:  p.active,
			Path:    c.Request.URL.Path,
			LiveURL: "/ws?" + liveQuery(name, p.params(q)).Encode(),
			Data:    p.model(ctx, q, false),
			Now:     h.now(),
		})
		if err != nil {
			logger.Error("Failed to render page", logger.String("page", name), logger.Err(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render page"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	}
}

func (h *Handler) handleFragment(c *gin.Context) {
	name := c.Param("page")
	p, ok := h.pages[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown page"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RenderWait)
	defer cancel()

	html, err := h.render.FragmentString(name, name+"-live", p.model(ctx, c.Request.URL.Query(), false))
	if err != nil {
		logger.Error("Failed to render fragment", logger.String("page", name), logger.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render page"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) handleLive(c *gin.Context) {
	q := c.Request.URL.Query()
	name := q.Get("page")
	p, ok := h.pages[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown page"})
		return
	}

	h.hub.Serve(c.Writer, c.Request, live.Page{
		Name:    name,
		Slot:    name + "-live",
		Watches: p.watch(q),
		Render: func(ctx context.Context) (string, error) {
			return h.render.FragmentString(name, name+"-live", p.model(ctx, q, true))
		},
	})
}

func liveQuery(page string, params url.Values) url.Values {
	v := url.Values{"page": {page}}
	for k, vals := range params {
		v[k] = vals
	}
	return v
}
