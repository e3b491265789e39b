package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv
const (
	EnvLogLevel     = "SONIDO_LOG_LEVEL"
	EnvHost         = "SONIDO_HOST"
	EnvPort         = "SONIDO_PORT"
	EnvDataDir      = "SONIDO_DATA_DIR"
	EnvFeaturesFile = "SONIDO_FEATURES_FILE"
	EnvModelsDir    = "SONIDO_MODELS_DIR"
)

// Config is the root configuration shared by the extract, train and serve commands
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Features FeatureConfig  `yaml:"features"`
	Training TrainingConfig `yaml:"training"`
	Server   ServerConfig   `yaml:"server"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
}

// PathsConfig locates the dataset and the serialized artifacts
type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`      // speaker/emotion/*.wav tree
	FeaturesFile string `yaml:"features_file"` // features + labels + encoder
	ModelsDir    string `yaml:"models_dir"`    // model, scaler, label encoder
}

// FeatureConfig controls MFCC extraction. Extraction and inference must use
// identical values; the dataset records them so a mismatch can be detected.
type FeatureConfig struct {
	SampleRate      int           `yaml:"sample_rate"` // 0 keeps the native rate
	Duration        time.Duration `yaml:"duration"`    // audio is truncated to this length
	NumCoefficients int           `yaml:"num_coefficients"`
	NumMelFilters   int           `yaml:"num_mel_filters"`
	FFTSize         int           `yaml:"fft_size"`
	HopSize         int           `yaml:"hop_size"`
	TopDB           float64       `yaml:"top_db"`
	ResampleQuality string        `yaml:"resample_quality"` // "sinc" (band-limited), "cubic" or "linear"
	Workers         int           `yaml:"workers"`          // corpus extraction workers, 0 = NumCPU
}

// TrainingConfig controls the trainer
type TrainingConfig struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	TestSize        float64 `yaml:"test_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	LearningRate    float64 `yaml:"learning_rate"`
	Seed            uint64  `yaml:"seed"`
	Workers         int     `yaml:"workers"` // gradient workers per batch, 0 = NumCPU
}

// ServerConfig controls the inference HTTP server
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BodyLimit       string        `yaml:"body_limit"`
	TempDir         string        `yaml:"temp_dir"` // scratch directory for uploaded audio, "" = os.TempDir()
	EnableCORS      bool          `yaml:"enable_cors"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultFeatureConfig mirrors the extraction used to build the IESC dataset:
// 3 s at 22050 Hz, 40 MFCCs over 128 Slaney mel bands, 2048/512 framing
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		SampleRate:      22050,
		Duration:        3 * time.Second,
		NumCoefficients: 40,
		NumMelFilters:   128,
		FFTSize:         2048,
		HopSize:         512,
		TopDB:           80.0,
		ResampleQuality: "sinc",
		Workers:         0,
	}
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          100,
		BatchSize:       32,
		TestSize:        0.2,
		ValidationSplit: 0.1,
		LearningRate:    0.001,
		Seed:            42,
		Workers:         0,
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            5000,
		BodyLimit:       "25M",
		TempDir:         "",
		EnableCORS:      true,
		ShutdownTimeout: 10 * time.Second,
	}
}

func DefaultPathsConfig() PathsConfig {
	return PathsConfig{
		DataDir:      "../data/IESC",
		FeaturesFile: "features_iesc_cnn.json",
		ModelsDir:    "models",
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Colors: true},
		Paths:    DefaultPathsConfig(),
		Features: DefaultFeatureConfig(),
		Training: DefaultTrainingConfig(),
		Server:   DefaultServerConfig(),
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then a .env file in the working directory (if present),
// then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides values from SONIDO_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv(EnvFeaturesFile); v != "" {
		c.Paths.FeaturesFile = v
	}
	if v := os.Getenv(EnvModelsDir); v != "" {
		c.Paths.ModelsDir = v
	}
	return nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	f := c.Features
	switch {
	case f.SampleRate < 0:
		return fmt.Errorf("features.sample_rate must not be negative")
	case f.Duration <= 0:
		return fmt.Errorf("features.duration must be positive")
	case f.NumCoefficients <= 0:
		return fmt.Errorf("features.num_coefficients must be positive")
	case f.NumMelFilters < f.NumCoefficients:
		return fmt.Errorf("features.num_mel_filters (%d) must be >= num_coefficients (%d)", f.NumMelFilters, f.NumCoefficients)
	case f.FFTSize <= 0 || f.HopSize <= 0:
		return fmt.Errorf("features.fft_size and features.hop_size must be positive")
	}

	t := c.Training
	switch {
	case t.Epochs <= 0:
		return fmt.Errorf("training.epochs must be positive")
	case t.BatchSize <= 0:
		return fmt.Errorf("training.batch_size must be positive")
	case t.TestSize <= 0 || t.TestSize >= 1:
		return fmt.Errorf("training.test_size must be in (0, 1)")
	case t.ValidationSplit < 0 || t.ValidationSplit >= 1:
		return fmt.Errorf("training.validation_split must be in [0, 1)")
	case t.LearningRate <= 0:
		return fmt.Errorf("training.learning_rate must be positive")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	return nil
}
