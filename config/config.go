// Package config loads the yaml configuration shared by the trainer and the
// predictor.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"loanscore/ml"
)

const (
	EnvArtifactDir = "LOANSCORE_ARTIFACT_DIR"
	EnvHTTPPort    = "LOANSCORE_HTTP_PORT"
	EnvLogLevel    = "LOANSCORE_LOG_LEVEL"

	DefaultPath = "config.yaml"
)

type Config struct {
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Training  TrainingConfig  `yaml:"training"`
	Predictor PredictorConfig `yaml:"predictor"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// DatasetConfig selects the training source. A non-empty SQLitePath wins
// over the CSV file.
type DatasetConfig struct {
	CSVFile     string `yaml:"csv_file"`
	SQLitePath  string `yaml:"sqlite_path"`
	SQLiteTable string `yaml:"sqlite_table"`
}

type TrainingConfig struct {
	Trees       int     `yaml:"trees"`
	MaxDepth    int     `yaml:"max_depth"`
	Seed        int64   `yaml:"seed"`
	TestRatio   float64 `yaml:"test_ratio"`
	TopFeatures int     `yaml:"top_features"`
	Workers     int     `yaml:"workers"`
}

// PredictorConfig tunes the inference service. CacheSize 0 disables
// prediction memoization.
type PredictorConfig struct {
	CacheSize int `yaml:"cache_size"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() *Config {
	forest := ml.DefaultForestParams()
	training := ml.DefaultTrainingConfig()
	return &Config{
		Artifacts: ArtifactsConfig{Dir: "."},
		Dataset: DatasetConfig{
			CSVFile:     "loan_dataset_20000.csv",
			SQLiteTable: "loans",
		},
		Training: TrainingConfig{
			Trees:       forest.NTrees,
			MaxDepth:    forest.MaxDepth,
			Seed:        forest.Seed,
			TestRatio:   training.TestRatio,
			TopFeatures: training.TopFeatures,
		},
		Predictor: PredictorConfig{CacheSize: 1024},
		HTTP: HTTPConfig{
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    1 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.UnmarshalStrict(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvArtifactDir); ok && v != "" {
		c.Artifacts.Dir = v
	}
	if v, ok := lookup(EnvHTTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHTTPPort, err)
		}
		c.HTTP.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Artifacts.Dir == "" {
		errs = append(errs, errors.New("artifacts.dir is empty"))
	}
	if c.Dataset.CSVFile == "" && c.Dataset.SQLitePath == "" {
		errs = append(errs, errors.New("dataset needs csv_file or sqlite_path"))
	}
	if c.Dataset.SQLitePath != "" && c.Dataset.SQLiteTable == "" {
		errs = append(errs, errors.New("dataset.sqlite_table is empty"))
	}
	if c.Training.Trees <= 0 {
		errs = append(errs, fmt.Errorf("training.trees must be positive, got %d", c.Training.Trees))
	}
	if c.Training.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("training.max_depth must be positive, got %d", c.Training.MaxDepth))
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		errs = append(errs, fmt.Errorf("training.test_ratio must be in (0, 1), got %v", c.Training.TestRatio))
	}
	if c.Training.TopFeatures < 0 {
		errs = append(errs, fmt.Errorf("training.top_features must not be negative, got %d", c.Training.TopFeatures))
	}
	if c.Predictor.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("predictor.cache_size must not be negative, got %d", c.Predictor.CacheSize))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port out of range: %d", c.HTTP.Port))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max_body_bytes must be positive, got %d", c.HTTP.MaxBodyBytes))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CSVPath resolves the dataset file against the artifact directory.
func (c *Config) CSVPath() string {
	if filepath.IsAbs(c.Dataset.CSVFile) {
		return c.Dataset.CSVFile
	}
	return filepath.Join(c.Artifacts.Dir, c.Dataset.CSVFile)
}

// TrainingConfig converts the training section into the trainer's options.
func (c *Config) TrainingConfig() ml.TrainingConfig {
	out := ml.DefaultTrainingConfig()
	out.Forest.NTrees = c.Training.Trees
	out.Forest.MaxDepth = c.Training.MaxDepth
	out.Forest.Seed = c.Training.Seed
	out.Forest.Workers = c.Training.Workers
	out.TestRatio = c.Training.TestRatio
	out.TopFeatures = c.Training.TopFeatures
	return out
}
