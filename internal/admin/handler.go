// Package admin serves the admin dashboard: system overview, service
// control, logs, metrics and the embedded Grafana and Prometheus views.
package admin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/hephaex/Barami/internal/api"
	"github.com/hephaex/Barami/internal/clients"
	"github.com/hephaex/Barami/internal/live"
	"github.com/hephaex/Barami/internal/logexport"
	"github.com/hephaex/Barami/internal/query"
	"github.com/hephaex/Barami/internal/view"
	"github.com/hephaex/Barami/pkg/logger"
	"github.com/hephaex/Barami/pkg/models"

	"github.com/gin-gonic/gin"
)

// Backend is the admin REST API. clients.AdminClient implements it.
type Backend interface {
	SystemStatus(ctx context.Context) (*models.SystemStatus, error)
	Services(ctx context.Context) ([]models.ServiceInfo, error)
	ControlService(ctx context.Context, serviceID string, action models.ServiceAction) error
	Logs(ctx context.Context, filter models.LogFilter) ([]models.LogEntry, error)
	Metrics(ctx context.Context) ([]models.MetricData, error)
	GrafanaDashboards(ctx context.Context) ([]models.GrafanaDashboard, error)
}

// Poll intervals while a page is open.
const (
	statusInterval   = 5 * time.Second
	servicesInterval = 10 * time.Second
	logsInterval     = 3 * time.Second
	metricsInterval  = 5 * time.Second
)

var (
	keyStatus   = query.NewKey("systemStatus")
	keyServices = query.NewKey("services")
	keyMetrics  = query.NewKey("metrics")
	keyGrafana  = query.NewKey("grafanaDashboards")
)

func logsKey(f models.LogFilter) query.Key {
	return query.NewKey("logs", f.Service, f.Level, f.Limit)
}

var serviceIDPattern = regexp.MustCompile("^[a-zA-Z0-9_-]{1,50}$")

func isValidID(id string) bool {
	return serviceIDPattern.MatchString(id)
}

type Options struct {
	// PrometheusPath is the proxied Prometheus UI framed by the metrics page.
	PrometheusPath string
	// RenderWait bounds how long a page request waits for data before it
	// renders the loading state and leaves the rest to the live session.
	RenderWait        time.Duration
	MutationRateLimit float64
	MutationBurst     int
}

type serviceCommand struct {
	ID     string
	Action models.ServiceAction
}

type Handler struct {
	backend  Backend
	queries  *query.Client
	render   *view.Renderer
	hub      *live.Hub
	exporter *logexport.Exporter
	control  *query.Mutation[serviceCommand]
	opts     Options
	pages    map[string]page
	now      func() time.Time
}

func NewHandler(backend Backend, queries *query.Client, render *view.Renderer, hub *live.Hub, exporter *logexport.Exporter, opts Options) *Handler {
	if opts.PrometheusPath == "" {
		opts.PrometheusPath = "/prometheus/graph"
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = 3 * time.Second
	}

	h := &Handler{
		backend:  backend,
		queries:  queries,
		render:   render,
		hub:      hub,
		exporter: exporter,
		opts:     opts,
		now:      time.Now,
	}
	h.control = query.NewMutation(queries, "service_control",
		func(ctx context.Context, cmd serviceCommand) error {
			return backend.ControlService(ctx, cmd.ID, cmd.Action)
		},
		query.WithInvalidates[serviceCommand](keyServices, keyStatus),
		query.WithTarget(func(cmd serviceCommand) string { return cmd.ID }),
	)
	h.pages = h.pageTable()
	return h
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.redirectHome)
	r.NoRoute(h.redirectHome)

	admin := r.Group("/admin")
	{
		admin.GET("", h.pageHandler("overview"))
		admin.GET("/grafana", h.pageHandler("grafana"))
		admin.GET("/metrics", h.pageHandler("metrics"))
		admin.GET("/services", h.pageHandler("services"))
		admin.GET("/logs", h.pageHandler("logs"))
		admin.GET("/logs/export", h.handleExportLogs)

		admin.POST("/services/:id/:action",
			api.RateLimit(h.opts.MutationRateLimit, h.opts.MutationBurst),
			h.validateServiceID(),
			h.handleServiceAction,
		)

		admin.GET("/fragments/:page", h.handleFragment)
		admin.GET("/ws", h.handleLive)
	}
}

// redirectHome sends the root and unknown paths to the overview.
func (h *Handler) redirectHome(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (h *Handler) validateServiceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isValidID(c.Param("id")) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid service ID format"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) handleServiceAction(c *gin.Context) {
	id := c.Param("id")
	action := models.ServiceAction(c.Param("action"))
	if !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	if svc, ok := h.cachedService(id); ok && !action.Allowed(svc.Status) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Cannot " + string(action) + " a " + svc.Status + " service",
		})
		return
	}

	err := h.control.Mutate(c.Request.Context(), serviceCommand{ID: id, Action: action})
	switch {
	case errors.Is(err, query.ErrMutationPending):
		c.JSON(http.StatusConflict, gin.H{"error": "An action is already running for this service"})
		return
	case err != nil:
		logger.Error("Service action failed",
			logger.String("service", id),
			logger.String("action", string(action)),
			logger.Err(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": clients.Message(err)})
		return
	}

	logger.Info("Service action completed",
		logger.String("service", id),
		logger.String("action", string(action)),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": id, "action": action})
}

// cachedService looks the service up in the last services snapshot.
func (h *Handler) cachedService(id string) (models.ServiceInfo, bool) {
	res := query.Peek[[]models.ServiceInfo](h.queries, keyServices)
	for _, s := range res.Data {
		if s.ID == id {
			return s, true
		}
	}
	return models.ServiceInfo{}, false
}

func (h *Handler) handleExportLogs(c *gin.Context) {
	filter := models.ParseLogFilter(c.Request.URL.Query())

	res := query.Fetch(c.Request.Context(), h.queries, logsKey(filter), h.logsFetcher(filter))
	if !res.HasData {
		msg := "Logs are not available"
		if res.Err != nil {
			msg = clients.Message(res.Err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
		return
	}

	exp, err := h.exporter.Export(c.Request.Context(), res.Data, h.now())
	if errors.Is(err, logexport.ErrNothingToExport) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export logs"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exp.Name+`"`)
	if exp.Object != "" {
		c.Header("X-Archive-Object", exp.Object)
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", exp.Body)
}

func (h *Handler) pageHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.pages[name]
		q := c.Request.URL.Query()
		if q.Get("refresh") != "" {
			h.queries.Invalidate(p.keys(q)...)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.RenderWait)
		defer cancel()

		liveURL := ""
		if p.live != nil && p.live(q) {
			liveURL = "/admin/ws?" + liveQuery(name, p.params(q)).Encode()
		}

		var buf bytes.Buffer
		err := h.render.Page(&buf, name, view.Page{
			Title:   p.title,
			Active:  name,
			Path:    c.Request.URL.Path,
			LiveURL: liveURL,
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

// handleFragment renders a page's live slot on its own, for clients that
// poll instead of holding a websocket.
func (h *Handler) handleFragment(c *gin.Context) {
	name := c.Param("page")
	p, ok := h.pages[name]
	if !ok || p.live == nil {
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
	if !ok || p.live == nil {
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
