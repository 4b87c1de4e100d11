package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("admin defaults", func(t *testing.T) {
		chdir(t, t.TempDir())

		cfg, err := Load(AdminDashboard)
		require.NoError(t, err)

		assert.Equal(t, AdminDashboard, cfg.App)
		assert.Equal(t, "3000", cfg.Port)
		assert.Equal(t, "http://localhost:8000/api", cfg.APIBaseURL)
		assert.Equal(t, 10*time.Second, cfg.APITimeout)
		assert.Equal(t, 5*time.Second, cfg.StaleTime)
		assert.Equal(t, 1, cfg.QueryRetry)
		assert.Equal(t, "http://localhost:3001", cfg.GrafanaURL)
		assert.Empty(t, cfg.RedisURL)
	})

	t.Run("news defaults skip proxies", func(t *testing.T) {
		chdir(t, t.TempDir())

		cfg, err := Load(NewsDashboard)
		require.NoError(t, err)

		assert.Equal(t, "3100", cfg.Port)
		assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
		assert.Empty(t, cfg.GrafanaURL)
	})

	t.Run("plain and prefixed env overrides", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("PORT", "9999")
		t.Setenv("BARAMI_STALE_TIME", "30s")
		t.Setenv("REDIS_URL", "redis://cache:6379/1")

		cfg, err := Load(NewsDashboard)
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 30*time.Second, cfg.StaleTime)
		assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:           AdminDashboard,
			Port:          "3000",
			APIBaseURL:    "http://api:8000/api",
			GrafanaURL:    "http://grafana:3000",
			PrometheusURL: "http://prometheus:9090",
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("collects missing vars", func(t *testing.T) {
		cfg := valid()
		cfg.Port = ""
		cfg.GrafanaURL = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PORT")
		assert.Contains(t, err.Error(), "GRAFANA_URL")
	})

	t.Run("minio requires credentials", func(t *testing.T) {
		cfg := valid()
		cfg.MinioEndpoint = "minio:9000"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MINIO_ACCESS_KEY")
	})

	t.Run("relative api url", func(t *testing.T) {
		cfg := valid()
		cfg.APIBaseURL = "/api"

		assert.Error(t, cfg.Validate())
	})
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
