package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultViewDistance, cfg.World.GetViewDistance())
	assert.Equal(t, DefaultTaskCountLimit, cfg.World.GetTaskCountLimit())
	assert.Equal(t, "palette", cfg.Storage.Compression)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
world:
  view_distance: 12
  task_count_limit: 4
storage:
  saves_dir: /tmp/saves
  compression: zstd
server:
  rest_port: 9000
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.World.GetViewDistance())
	assert.Equal(t, 4, cfg.World.GetWorkers())
	assert.Equal(t, DefaultMinimumViewDistance, cfg.World.GetMinimumViewDistance())
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
	assert.Equal(t, "assets/blocks.yaml", cfg.Content.Blocks)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world:\n  view_distance: 6\n"), 0644))
	t.Setenv("VOXEL_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.World.ViewDistance)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  compression: lz4\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("VOXEL_METRICS_PORT", "9100")
	s := ServerConfig{}
	assert.Equal(t, 9100, s.GetMetricsPort())

	s.MetricsPort = 9200
	assert.Equal(t, 9200, s.GetMetricsPort())
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "assets", "config.yaml"))
	require.NoError(t, err, "пример конфигурации должен проходить проверку")

	assert.Equal(t, 8, cfg.World.GetViewDistance())
	assert.Equal(t, 4, cfg.World.GetMinimumViewDistance())
	assert.Equal(t, 10, cfg.World.GetWorkers(), "0 воркеров означает по числу задач")
	assert.Equal(t, "World", cfg.Storage.Save)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Components["terrain"])
}

func TestSampleRatioBounds(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)

	cfg.Telemetry.SampleRatio = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Telemetry.SampleRatio = 0
	assert.NoError(t, cfg.Validate())
}
