// Package config loads xlsx2arrow settings from defaults, an optional YAML
// file and XLSX2ARROW_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/magpierre/xlsxarrow/convert"
	"github.com/magpierre/xlsxarrow/export"
	"github.com/magpierre/xlsxarrow/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. XLSX2ARROW_CONVERT_BATCH_SIZE.
const EnvPrefix = "XLSX2ARROW"

// DefaultFile is read when no config file is named and it exists in the
// working directory.
const DefaultFile = "xlsx2arrow.yaml"

// Config represents the complete application configuration
type Config struct {
	Convert ConvertConfig `yaml:"convert" envconfig:"CONVERT"`
	Export  ExportConfig  `yaml:"export" envconfig:"EXPORT"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ConvertConfig controls how sheets are read
type ConvertConfig struct {
	BatchSize int    `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	Sheet     string `yaml:"sheet" envconfig:"SHEET"`
	Workers   int    `yaml:"workers" envconfig:"WORKERS"`
}

// ExportConfig controls the written output
type ExportConfig struct {
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Compression string `yaml:"compression" envconfig:"COMPRESSION"`
	OutDir      string `yaml:"out_dir" envconfig:"OUT_DIR"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Convert: ConvertConfig{
			BatchSize: convert.DefaultBatchSize,
			Workers:   4,
		},
		Export: ExportConfig{
			Format:      "parquet",
			Compression: "snappy",
			OutDir:      ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path falls back to DefaultFile
// when present. The result is not validated so callers can apply their own
// overrides first; call Validate once they are merged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file at path onto cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Convert.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("convert.batch_size must be positive, got %d", c.Convert.BatchSize))
	}
	if c.Convert.Workers <= 0 {
		errs = append(errs, fmt.Errorf("convert.workers must be positive, got %d", c.Convert.Workers))
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		errs = append(errs, fmt.Errorf("export.format: %w", err))
	}
	if _, err := export.ParseCompression(c.Export.Compression); err != nil {
		errs = append(errs, fmt.Errorf("export.compression: %w", err))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}

	return errors.Join(errs...)
}
