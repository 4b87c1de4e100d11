package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hephaex/Barami/pkg/models"
)

// AdminClient talks to the admin backend under <base>/admin.
type AdminClient struct {
	baseClient
}

func NewAdminClient(baseURL string, timeout time.Duration) *AdminClient {
	return &AdminClient{baseClient: newBaseClient(baseURL, timeout)}
}

func (c *AdminClient) SystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	var status models.SystemStatus
	if err := c.do(ctx, http.MethodGet, "/admin/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *AdminClient) Services(ctx context.Context) ([]models.ServiceInfo, error) {
	var services []models.ServiceInfo
	if err := c.do(ctx, http.MethodGet, "/admin/services", nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *AdminClient) ControlService(ctx context.Context, serviceID string, action models.ServiceAction) error {
	if !action.Valid() {
		return fmt.Errorf("unsupported service action %q", action)
	}
	path := fmt.Sprintf("/admin/services/%s/%s", url.PathEscape(serviceID), action)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *AdminClient) StartService(ctx context.Context, serviceID string) error {
	return c.ControlService(ctx, serviceID, models.ActionStart)
}

func (c *AdminClient) StopService(ctx context.Context, serviceID string) error {
	return c.ControlService(ctx, serviceID, models.ActionStop)
}

func (c *AdminClient) RestartService(ctx context.Context, serviceID string) error {
	return c.ControlService(ctx, serviceID, models.ActionRestart)
}

// Logs normalizes the filter before sending it, so the limit on the wire is
// always within bounds.
func (c *AdminClient) Logs(ctx context.Context, filter models.LogFilter) ([]models.LogEntry, error) {
	filter = filter.Normalize()

	q := url.Values{}
	if filter.Service != "" {
		q.Set("service", filter.Service)
	}
	if filter.Level != "" {
		q.Set("level", filter.Level)
	}
	q.Set("limit", strconv.Itoa(filter.Limit))

	var logs []models.LogEntry
	if err := c.do(ctx, http.MethodGet, "/admin/logs", q, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (c *AdminClient) Metrics(ctx context.Context) ([]models.MetricData, error) {
	var metrics []models.MetricData
	if err := c.do(ctx, http.MethodGet, "/admin/metrics", nil, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

func (c *AdminClient) GrafanaDashboards(ctx context.Context) ([]models.GrafanaDashboard, error) {
	var dashboards []models.GrafanaDashboard
	if err := c.do(ctx, http.MethodGet, "/admin/grafana/dashboards", nil, &dashboards); err != nil {
		return nil, err
	}
	return dashboards, nil
}
