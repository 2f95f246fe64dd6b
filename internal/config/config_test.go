package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
app:
  name: "muadati"
  environment: "production"
database:
  path: "test.db"
auth:
  jwt_secret: "${MUADATI_TEST_SECRET}"
  token_ttl: 2h
uploads:
  driver: local
  dir: "uploads"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))
	t.Setenv("MUADATI_TEST_SECRET", "expanded-secret")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "expanded-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.Uploads.MaxFiles)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "path"},
			Auth:     AuthConfig{JWTSecret: "secret"},
			Uploads:  UploadsConfig{Driver: UploadsLocal, Dir: "uploads"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "placeholder secret", mutate: func(c *Config) { c.Auth.JWTSecret = "CHANGE_ME" }, wantErr: true},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Uploads.Driver = UploadsS3 }, wantErr: true},
		{
			name: "s3 with bucket",
			mutate: func(c *Config) {
				c.Uploads.Driver = UploadsS3
				c.S3.Bucket = "images"
			},
			wantErr: false,
		},
		{name: "unknown driver", mutate: func(c *Config) { c.Uploads.Driver = "ftp" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.GRPC.Port != 8081 {
		t.Errorf("expected default gRPC port 8081, got %d", cfg.API.GRPC.Port)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Auth.TokenTTL != 30*24*time.Hour {
		t.Errorf("expected 30 day token ttl, got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Uploads.MaxFileSize != 5<<20 {
		t.Errorf("expected 5MiB upload limit, got %d", cfg.Uploads.MaxFileSize)
	}
	assert.Equal(t, []string{"jpeg", "jpg", "png", "webp"}, cfg.Uploads.AllowedTypes)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.False(t, cfg.IsProduction())
}
