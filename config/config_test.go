package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
	assert.Equal(t, 5000, config.HTTP.Port)
	assert.Equal(t, 100, config.Training.Trees)
	assert.Equal(t, 15, config.Training.MaxDepth)
	assert.Equal(t, int64(42), config.Training.Seed)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
artifacts:
  dir: /srv/model
training:
  trees: 20
http:
  port: 8080
  read_timeout: 3s
  allowed_origins: ["https://example.com"]
log:
  level: debug
  format: json
`)
	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/model", config.Artifacts.Dir)
	assert.Equal(t, 20, config.Training.Trees)
	assert.Equal(t, 15, config.Training.MaxDepth)
	assert.Equal(t, 8080, config.HTTP.Port)
	assert.Equal(t, 3*time.Second, config.HTTP.ReadTimeout)
	assert.Equal(t, 15*time.Second, config.HTTP.WriteTimeout)
	assert.Equal(t, []string{"https://example.com"}, config.HTTP.AllowedOrigins)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, "/srv/model/loan_dataset_20000.csv", config.CSVPath())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "http:\n  prot: 80\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvArtifactDir, "/tmp/artifacts")
	t.Setenv(EnvHTTPPort, "9090")
	t.Setenv(EnvLogLevel, "warn")

	config, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/artifacts", config.Artifacts.Dir)
	assert.Equal(t, 9090, config.HTTP.Port)
	assert.Equal(t, "warn", config.Log.Level)
}

func TestLoadBadEnvPort(t *testing.T) {
	t.Setenv(EnvHTTPPort, "http")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, EnvHTTPPort)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero trees", func(c *Config) { c.Training.Trees = 0 }, "training.trees"},
		{"negative depth", func(c *Config) { c.Training.MaxDepth = -1 }, "training.max_depth"},
		{"ratio one", func(c *Config) { c.Training.TestRatio = 1 }, "training.test_ratio"},
		{"ratio zero", func(c *Config) { c.Training.TestRatio = 0 }, "training.test_ratio"},
		{"port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"cache size", func(c *Config) { c.Predictor.CacheSize = -1 }, "predictor.cache_size"},
		{"level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no dataset", func(c *Config) { c.Dataset.CSVFile = "" }, "dataset"},
		{"sqlite without table", func(c *Config) {
			c.Dataset.SQLitePath = "loans.db"
			c.Dataset.SQLiteTable = ""
		}, "sqlite_table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			assert.ErrorContains(t, config.Validate(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestCSVPathAbsolute(t *testing.T) {
	config := Default()
	config.Dataset.CSVFile = "/data/loans.csv"
	assert.Equal(t, "/data/loans.csv", config.CSVPath())
}

func TestTrainingConfig(t *testing.T) {
	config := Default()
	config.Training.Trees = 7
	config.Training.Workers = 2
	training := config.TrainingConfig()
	assert.Equal(t, 7, training.Forest.NTrees)
	assert.Equal(t, 15, training.Forest.MaxDepth)
	assert.Equal(t, 2, training.Forest.Workers)
	assert.Equal(t, 0.2, training.TestRatio)
	assert.Equal(t, 10, training.TopFeatures)
}
