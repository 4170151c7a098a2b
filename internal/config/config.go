// Package config loads server configuration from an optional YAML file with
// SAMPLECORE_* environment overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects and configures the history archive backend.
type ArchiveConfig struct {
	// Driver is one of fs, s3, memory. Empty disables archiving.
	Driver string   `yaml:"driver"`
	FSRoot string   `yaml:"fs_root"`
	S3     S3Config `yaml:"s3"`
}

// S3Config configures the s3 archive driver.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		Listen: ":8080",
		Store:  StoreConfig{Driver: "memory", SQLitePath: "samplecore.db"},
		Archive: ArchiveConfig{
			Driver: "fs",
			FSRoot: "./archivedata",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist) over the defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// fall through to env overrides
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&cfg.Listen, "SAMPLECORE_LISTEN")
	setString(&cfg.Store.Driver, "SAMPLECORE_STORE_DRIVER")
	setString(&cfg.Store.SQLitePath, "SAMPLECORE_SQLITE_PATH")
	setString(&cfg.Store.PostgresDSN, "SAMPLECORE_POSTGRES_DSN")
	setString(&cfg.Archive.Driver, "SAMPLECORE_ARCHIVE_DRIVER")
	setString(&cfg.Archive.FSRoot, "SAMPLECORE_ARCHIVE_FS_ROOT")
	setString(&cfg.Archive.S3.Bucket, "SAMPLECORE_ARCHIVE_S3_BUCKET")
	setString(&cfg.Archive.S3.Region, "SAMPLECORE_ARCHIVE_S3_REGION")
	setString(&cfg.Archive.S3.Endpoint, "SAMPLECORE_ARCHIVE_S3_ENDPOINT")
	setString(&cfg.Log.Level, "SAMPLECORE_LOG_LEVEL")
	if v, ok := os.LookupEnv("SAMPLECORE_ARCHIVE_S3_PATH_STYLE"); ok {
		cfg.Archive.S3.PathStyle = strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv("SAMPLECORE_LOG_DEVELOPMENT"); ok {
		cfg.Log.Development = strings.EqualFold(v, "true")
	}
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Archive.Driver {
	case "", "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	if c.Archive.Driver == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive s3 driver requires a bucket")
	}
	return nil
}
