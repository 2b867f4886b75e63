package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-overlay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func loadWith(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var (
		cfg     config.Config
		loadErr error
	)
	app := newApp()
	app.Action = func(c *cli.Context) error {
		cfg, loadErr = loadConfig(c)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"overlay"}, args...)))
	return cfg, loadErr
}

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadWith(t,
		"--source", "clip.mp4",
		"--model", "yolov8n.onnx",
		"--threshold", "0.7",
		"--tick-interval", "250ms",
		"--listen", ":8080",
		"--stop-on-end",
		"--debug",
	)
	require.NoError(t, err)

	assert.Equal(t, "yolov8n.onnx", cfg.Model.Path)
	assert.InDelta(t, 0.7, cfg.Detection.ConfidenceThreshold, 1e-6)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.True(t, cfg.Scheduler.StopOnEnd)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.Default().Frame, cfg.Frame)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadWith(t, "--source", "clip.mp4")
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def.Detection, cfg.Detection)
	assert.Equal(t, def.Scheduler, cfg.Scheduler)
	assert.Equal(t, def.Model, cfg.Model)
}

func TestLoadConfigInvalidFlag(t *testing.T) {
	_, err := loadWith(t, "--source", "clip.mp4", "--threshold", "1.5")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestWriteDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, newApp().Run([]string{"overlay", "defaults", path}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Scheduler, cfg.Scheduler)

	cfg, err = loadWith(t, "--config", path, "--source", "0", "--backend", "cuda")
	require.NoError(t, err)
	assert.Equal(t, config.BackendCUDA, cfg.Model.Backend)

	assert.Error(t, newApp().Run([]string{"overlay", "defaults"}))
}

func TestRunRequiresSource(t *testing.T) {
	assert.Error(t, newApp().Run([]string{"overlay"}))
}
