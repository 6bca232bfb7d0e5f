package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ctcdecode/ctcdecode/internal/logging"
)

func TestSetupVerboseForcesDebug(t *testing.T) {
	logging.Setup("error", true)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestSetupLevelsWithoutVerbose(t *testing.T) {
	logging.Setup("warn", false)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
}

func TestSetupDefaultsToInfo(t *testing.T) {
	logging.Setup("unknown", false)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}
