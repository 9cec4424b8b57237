package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log")
	cfg := DefaultConfig()
	cfg.OutputPaths = []string{out}

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("Environment created", zap.String("label", "root"))
	logger.Debug("hidden at info")
	logger.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Environment created"`)
	assert.Contains(t, string(data), `"label":"root"`)
	assert.Contains(t, string(data), `"logger":"appmgr"`)
	assert.NotContains(t, string(data), "hidden at info")
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestForLevel(t *testing.T) {
	cfg := ForLevel("warn", false)
	assert.Equal(t, "warn", cfg.Level)
	assert.False(t, cfg.Development)

	cfg = ForLevel("", true)
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Development)
}

func TestFallbacks(t *testing.T) {
	assert.NotNil(t, NewDefault().Logger)
	assert.NotNil(t, NewDevelopment().Logger)
}
