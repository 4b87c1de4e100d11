package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	t.Run("level override", func(t *testing.T) {
		require.NoError(t, Init("admin-dashboard", "production", "warn"))
		assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
		assert.True(t, Get().Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("environment default", func(t *testing.T) {
		require.NoError(t, Init("news-dashboard", "development", ""))
		assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		assert.Error(t, Init("news-dashboard", "production", "loud"))
	})
}

func TestHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core).With(zap.String("app", "admin-dashboard")))
	t.Cleanup(func() { Set(nil) })

	Warn("Query fetch failed", String("key", "logs/api"), Int("attempts", 2), Err(errors.New("timeout")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "admin-dashboard", fields["app"])
	assert.Equal(t, "logs/api", fields["key"])
	assert.Equal(t, int64(2), fields["attempts"])
	assert.Equal(t, "timeout", fields["error"])
}
