package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
)

func TestSetup(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		log, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: level})
		require.NoError(t, err, "level: %q", level)
		assert.NotNil(t, log)
	}

	_, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: "verbose"})
	assert.Error(t, err)
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	t.Run("FromContext falls back to default", func(t *testing.T) {
		t.Parallel()
		assert.NotNil(t, logger.FromContext(context.Background()))
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		log := slog.Default().With("component", "test")
		ctx := logger.WithContext(context.Background(), log)
		assert.Same(t, log, logger.FromContext(ctx))
	})

	t.Run("FromContextOrDefault prefers context logger", func(t *testing.T) {
		t.Parallel()

		fromCtx := slog.Default().With("source", "ctx")
		component := slog.Default().With("source", "component")

		ctx := logger.WithContext(context.Background(), fromCtx)
		assert.Same(t, fromCtx, logger.FromContextOrDefault(ctx, component))
		assert.Same(t, component, logger.FromContextOrDefault(context.Background(), component))
		assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
	})
}
