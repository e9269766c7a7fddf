// Package config loads configuration from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fruitsalade/s3file/pkg/storage/backend"
)

// Config holds s3file configuration.
type Config struct {
	// Storage backend ("s3", "minio" or "local", default: "s3")
	Backend string

	// S3 / MinIO
	S3Endpoint  string
	S3Region    string
	S3Profile   string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// Local backend root
	LocalStoragePath string

	// Local staging and cache directories
	StagingDir string
	CacheDir   string

	// Logging
	LogLevel  string
	LogFormat string

	// Metrics textfile written after each command (optional)
	MetricsTextfile string
}

// Override adjusts a loaded Config before it is validated.
type Override func(*Config)

// Load reads configuration from a .env file in the working directory, if
// present, and the environment. Environment variables take precedence over
// the .env file; overrides take precedence over both.
func Load(overrides ...Override) (*Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New(), overrides...)
}

// FromViper builds a Config from v after applying defaults and
// environment binding.
func FromViper(v *viper.Viper, overrides ...Override) (*Config, error) {
	v.SetDefault("S3FILE_BACKEND", backend.TypeS3)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_PROFILE", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("LOCAL_STORAGE_PATH", "/data/storage")
	v.SetDefault("S3FILE_STAGING_DIR", "/tmp/s3")
	v.SetDefault("S3FILE_CACHE_DIR", "~/Downloads")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("METRICS_TEXTFILE", "")

	v.AutomaticEnv()

	cfg := &Config{
		Backend:          v.GetString("S3FILE_BACKEND"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		S3Region:         v.GetString("S3_REGION"),
		S3Profile:        v.GetString("S3_PROFILE"),
		S3AccessKey:      v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:      v.GetString("S3_SECRET_KEY"),
		S3UseSSL:         v.GetBool("S3_USE_SSL"),
		LocalStoragePath: v.GetString("LOCAL_STORAGE_PATH"),
		StagingDir:       v.GetString("S3FILE_STAGING_DIR"),
		CacheDir:         v.GetString("S3FILE_CACHE_DIR"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		MetricsTextfile:  v.GetString("METRICS_TEXTFILE"),
	}
	for _, o := range overrides {
		o(cfg)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case backend.TypeS3, backend.TypeMinio:
	case backend.TypeLocal:
		if c.LocalStoragePath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is required for the local backend")
		}
	default:
		return fmt.Errorf("S3FILE_BACKEND must be one of s3, minio, local (got %q)", c.Backend)
	}
	if c.Backend == backend.TypeMinio && c.S3Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required for the minio backend")
	}
	return nil
}

// StorageConfig returns the transport configuration.
func (c *Config) StorageConfig() backend.Config {
	return backend.Config{
		Type:      c.Backend,
		Endpoint:  c.S3Endpoint,
		Region:    c.S3Region,
		Profile:   c.S3Profile,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		UseSSL:    c.S3UseSSL,
		LocalRoot: c.LocalStoragePath,
	}
}
