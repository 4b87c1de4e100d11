// Package proxy forwards the embedded Grafana and Prometheus UIs through the
// admin dashboard origin so they can be framed without cross-origin setup.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/hephaex/Barami/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Route mounts Origin under Prefix. The request path is forwarded unchanged,
// so the upstream must itself be served from the same sub path.
type Route struct {
	Name   string
	Prefix string
	Origin string
}

// New builds a reverse proxy that rewrites the Host header to the target.
func New(name, origin string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid %s origin: %w", name, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid %s origin %q: must be absolute", name, origin)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Proxy request failed",
				logger.String("upstream", name),
				logger.String("path", r.URL.Path),
				logger.Err(err),
			)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": fmt.Sprintf("%s is unavailable", name),
			})
		},
	}, nil
}

type Module struct {
	routes  []Route
	proxies []*httputil.ReverseProxy
}

// NewModule skips routes without an origin.
func NewModule(routes ...Route) (*Module, error) {
	m := &Module{}
	for _, rt := range routes {
		if rt.Origin == "" {
			logger.Info("Proxy disabled", logger.String("upstream", rt.Name))
			continue
		}
		p, err := New(rt.Name, rt.Origin)
		if err != nil {
			return nil, err
		}
		rt.Prefix = "/" + strings.Trim(rt.Prefix, "/")
		m.routes = append(m.routes, rt)
		m.proxies = append(m.proxies, p)
	}
	return m, nil
}

func (m *Module) Register(r *gin.Engine) {
	for i, rt := range m.routes {
		r.Any(rt.Prefix+"/*path", gin.WrapH(m.proxies[i]))
	}
}
