package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// App names one of the dashboard binaries. It selects defaults and the
// config file name (<app>.yaml).
type App string

const (
	AdminDashboard App = "admin-dashboard"
	NewsDashboard  App = "news-dashboard"
)

type Config struct {
	App         App    `mapstructure:"-"`
	Port        string `mapstructure:"port"`
	Environment string `mapstructure:"environment"`

	// Backend REST origin, including the /api prefix.
	APIBaseURL string        `mapstructure:"api_base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`

	GrafanaURL    string `mapstructure:"grafana_url"`
	PrometheusURL string `mapstructure:"prometheus_url"`

	StaleTime    time.Duration `mapstructure:"stale_time"`
	CacheTime    time.Duration `mapstructure:"cache_time"`
	QueryRetry   int           `mapstructure:"query_retry"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// Optional. Empty disables the shared snapshot store.
	RedisURL         string        `mapstructure:"redis_url"`
	RedisPoolSize    int           `mapstructure:"redis_pool_size"`
	RedisDialTimeout time.Duration `mapstructure:"redis_dial_timeout"`
	SnapshotTTL      time.Duration `mapstructure:"snapshot_ttl"`

	// Optional. Empty endpoint disables log export archival.
	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`
	MinioBucket    string `mapstructure:"minio_bucket"`

	MutationRateLimit float64 `mapstructure:"mutation_rate_limit"`
	MutationBurst     int     `mapstructure:"mutation_burst"`

	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	ProbeInterval   time.Duration `mapstructure:"probe_interval"`
}

// envNames maps config keys to the plain environment variables accepted in
// addition to the BARAMI_ prefixed form.
var envNames = map[string]string{
	"port":             "PORT",
	"environment":      "GO_ENV",
	"api_base_url":     "API_BASE_URL",
	"grafana_url":      "GRAFANA_URL",
	"prometheus_url":   "PROMETHEUS_URL",
	"redis_url":        "REDIS_URL",
	"minio_endpoint":   "MINIO_ENDPOINT",
	"minio_access_key": "MINIO_ACCESS_KEY",
	"minio_secret_key": "MINIO_SECRET_KEY",
	"minio_use_ssl":    "MINIO_USE_SSL",
}

// Load reads <app>.yaml from the working directory or /etc/barami when
// present, then applies environment overrides.
func Load(app App) (*Config, error) {
	v := viper.New()
	setDefaults(v, app)

	v.SetConfigName(string(app))
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/barami/")

	v.SetEnvPrefix("BARAMI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, "BARAMI_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.App = app

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, app App) {
	v.SetDefault("environment", "development")
	v.SetDefault("api_timeout", "10s")
	v.SetDefault("stale_time", "5s")
	v.SetDefault("cache_time", "5m")
	v.SetDefault("query_retry", 1)
	v.SetDefault("fetch_timeout", "15s")
	v.SetDefault("snapshot_ttl", "10m")
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_dial_timeout", "5s")
	v.SetDefault("minio_bucket", "barami-log-exports")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("mutation_rate_limit", 2.0)
	v.SetDefault("mutation_burst", 5)
	v.SetDefault("janitor_interval", "1m")
	v.SetDefault("probe_interval", "30s")

	switch app {
	case AdminDashboard:
		v.SetDefault("port", "3000")
		v.SetDefault("api_base_url", "http://localhost:8000/api")
		v.SetDefault("grafana_url", "http://localhost:3001")
		v.SetDefault("prometheus_url", "http://localhost:9090")
	case NewsDashboard:
		v.SetDefault("port", "3100")
		v.SetDefault("api_base_url", "http://localhost:8080/api")
	}
}

func (c *Config) Validate() error {
	var missingVars []string

	if c.Port == "" {
		missingVars = append(missingVars, "PORT")
	}
	if c.APIBaseURL == "" {
		missingVars = append(missingVars, "API_BASE_URL")
	}
	if c.App == AdminDashboard {
		if c.GrafanaURL == "" {
			missingVars = append(missingVars, "GRAFANA_URL")
		}
		if c.PrometheusURL == "" {
			missingVars = append(missingVars, "PROMETHEUS_URL")
		}
	}
	if c.MinioEndpoint != "" {
		if c.MinioAccessKey == "" {
			missingVars = append(missingVars, "MINIO_ACCESS_KEY")
		}
		if c.MinioSecretKey == "" {
			missingVars = append(missingVars, "MINIO_SECRET_KEY")
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	urls := map[string]string{
		"API_BASE_URL":   c.APIBaseURL,
		"GRAFANA_URL":    c.GrafanaURL,
		"PROMETHEUS_URL": c.PrometheusURL,
	}
	for name, raw := range urls {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s format: %q is not absolute", name, raw)
		}
	}
	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("invalid REDIS_URL format: %w", err)
		}
	}
	if c.QueryRetry < 0 {
		return fmt.Errorf("query_retry must be >= 0, got %d", c.QueryRetry)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
