package models

// Health states reported by the admin backend for a service probe.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// Run states of a managed service.
const (
	ServiceRunning    = "running"
	ServiceStopped    = "stopped"
	ServiceRestarting = "restarting"
)

// ServiceHealth is one probe result within a SystemStatus.
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Uptime    int64  `json:"uptime"` // seconds
	LastCheck string `json:"lastCheck"`
	Message   string `json:"message,omitempty"`
}

type CPUMetrics struct {
	Usage float64 `json:"usage"`
	Cores int     `json:"cores"`
}

// UsageMetrics is a used/total pair in GB with a precomputed percentage.
type UsageMetrics struct {
	Used       float64 `json:"used"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
}

type SystemMetrics struct {
	CPU    CPUMetrics   `json:"cpu"`
	Memory UsageMetrics `json:"memory"`
	Disk   UsageMetrics `json:"disk"`
}

// SystemStatus is the aggregate health snapshot behind the overview page.
type SystemStatus struct {
	Overall   string          `json:"overall"`
	Services  []ServiceHealth `json:"services"`
	Metrics   SystemMetrics   `json:"metrics"`
	Timestamp string          `json:"timestamp"`
}

// ServiceInfo describes a managed service. Type is one of api, worker,
// database, cache or monitoring.
type ServiceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Port      int    `json:"port,omitempty"`
	Replicas  int    `json:"replicas,omitempty"`
	Version   string `json:"version,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

// ServiceAction is a lifecycle command sent to the admin backend.
type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionRestart ServiceAction = "restart"
)

func (a ServiceAction) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart:
		return true
	}
	return false
}

// Allowed reports whether the action changes anything for a service in the
// given run state. Starting a running service or stopping a stopped one is a
// no-op and is not offered.
func (a ServiceAction) Allowed(status string) bool {
	switch a {
	case ActionStart:
		return status == ServiceStopped
	case ActionStop, ActionRestart:
		return status == ServiceRunning
	}
	return false
}

type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Service   string         `json:"service"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type MetricData struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit"`
	Timestamp string            `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type GrafanaDashboard struct {
	UID   string   `json:"uid"`
	Title string   `json:"title"`
	URL   string   `json:"url"`
	Tags  []string `json:"tags"`
}
