package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 22050, cfg.Features.SampleRate)
	assert.Equal(t, 3*time.Second, cfg.Features.Duration)
	assert.Equal(t, 40, cfg.Features.NumCoefficients)
	assert.Equal(t, "sinc", cfg.Features.ResampleQuality)
	assert.Equal(t, 100, cfg.Training.Epochs)
	assert.Equal(t, 0.1, cfg.Training.ValidationSplit)
	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.Equal(t, uint64(42), cfg.Training.Seed)
	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Address())
	assert.Equal(t, "models", cfg.Paths.ModelsDir)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "sonido.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
paths:
  models_dir: /srv/models
features:
  duration: 2s
training:
  epochs: 5
server:
  port: 8081
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/srv/models", cfg.Paths.ModelsDir)
	assert.Equal(t, 2*time.Second, cfg.Features.Duration)
	assert.Equal(t, 5, cfg.Training.Epochs)
	assert.Equal(t, 8081, cfg.Server.Port)
	// untouched keys keep their defaults
	assert.Equal(t, 40, cfg.Features.NumCoefficients)
	assert.Equal(t, 32, cfg.Training.BatchSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvModelsDir, "artifacts")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "artifacts", cfg.Paths.ModelsDir)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SONIDO_DATA_DIR=/data/iesc\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(EnvDataDir) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/data/iesc", cfg.Paths.DataDir)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPort, "not-a-port")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"mel filters below coefficients": func(c *Config) { c.Features.NumMelFilters = 20 },
		"zero duration":                  func(c *Config) { c.Features.Duration = 0 },
		"test size one":                  func(c *Config) { c.Training.TestSize = 1 },
		"zero batch":                     func(c *Config) { c.Training.BatchSize = 0 },
		"port out of range":              func(c *Config) { c.Server.Port = 70000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
