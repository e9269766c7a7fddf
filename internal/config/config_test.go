package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/s3file/pkg/storage/backend"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, backend.TypeS3, cfg.Backend)
	assert.True(t, cfg.S3UseSSL)
	assert.Equal(t, "/tmp/s3", cfg.StagingDir)
	assert.Equal(t, "~/Downloads", cfg.CacheDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Empty(t, cfg.MetricsTextfile)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("S3FILE_BACKEND", "MinIO")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_ACCESS_KEY", "minioadmin")
	t.Setenv("S3_SECRET_KEY", "minioadmin")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("S3FILE_STAGING_DIR", "/var/tmp/stage")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, backend.TypeMinio, cfg.Backend)
	assert.Equal(t, "/var/tmp/stage", cfg.StagingDir)

	sc := cfg.StorageConfig()
	assert.Equal(t, backend.Config{
		Type:      backend.TypeMinio,
		Endpoint:  "http://localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		UseSSL:    false,
		LocalRoot: "/data/storage",
	}, sc)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"s3", Config{Backend: "s3"}, false},
		{"minio with endpoint", Config{Backend: "minio", S3Endpoint: "localhost:9000"}, false},
		{"minio without endpoint", Config{Backend: "minio"}, true},
		{"local", Config{Backend: "local", LocalStoragePath: "/data"}, false},
		{"local without root", Config{Backend: "local"}, true},
		{"unknown", Config{Backend: "gcs"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOverridesApplyBeforeValidation(t *testing.T) {
	t.Setenv("S3FILE_BACKEND", "minio")

	_, err := FromViper(viper.New())
	assert.Error(t, err, "minio needs an endpoint")

	cfg, err := FromViper(viper.New(), func(c *Config) {
		c.S3Endpoint = "localhost:9000"
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.S3Endpoint)
}

func TestBackendOverrideIsCaseInsensitive(t *testing.T) {
	cfg, err := FromViper(viper.New(), func(c *Config) {
		c.Backend = "Local"
		c.LocalStoragePath = "/data"
	})
	require.NoError(t, err)
	assert.Equal(t, backend.TypeLocal, cfg.Backend)
	assert.Equal(t, backend.TypeLocal, cfg.StorageConfig().Type)
}
