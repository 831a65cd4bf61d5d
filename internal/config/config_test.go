package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dealroom", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "participant", cfg.Permissions.DefaultPreset)
	assert.Equal(t, 5*time.Minute, cfg.Permissions.CacheTTL)
	assert.Empty(t, cfg.Permissions.PresetsFile)
	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.Equal(t, 365*24*time.Hour, cfg.Audit.Retention())
	assert.Equal(t, "0 3 * * *", cfg.Audit.RetentionSchedule)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FromEnv(t *testing.T) {
	presets := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(presets, []byte("categories: []\n"), 0o600))

	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PERMISSIONS_DEFAULT_PRESET", "observer")
	t.Setenv("PERMISSIONS_CACHE_TTL", "30s")
	t.Setenv("PERMISSIONS_PRESETS_FILE", presets)
	t.Setenv("WORKER_CONCURRENCY", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DB_AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "observer", cfg.Permissions.DefaultPreset)
	assert.Equal(t, 30*time.Second, cfg.Permissions.CacheTTL)
	assert.Equal(t, presets, cfg.Permissions.PresetsFile)
	assert.Equal(t, 12, cfg.Worker.Concurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("PERMISSIONS_CACHE_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Permissions.CacheTTL)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Setenv("SERVER_PORT", "70000")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("PERMISSIONS_PRESETS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port: 70000")
	assert.Contains(t, err.Error(), "invalid LOG_LEVEL")
	assert.Contains(t, err.Error(), "PERMISSIONS_PRESETS_FILE")
}

func TestValidate_PresetsFromS3(t *testing.T) {
	t.Setenv("PERMISSIONS_PRESETS_FILE", "s3://deal-config/presets.yaml")
	t.Setenv("PERMISSIONS_S3_REGION", "eu-west-1")

	cfg, err := Load()
	require.NoError(t, err, "s3 locations are not stat'ed locally")
	assert.True(t, cfg.Permissions.PresetsFromS3())
	assert.Equal(t, "eu-west-1", cfg.Permissions.S3.Region)

	t.Setenv("PERMISSIONS_S3_ACCESS_KEY", "AKIA123")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestValidate_Audit(t *testing.T) {
	tests := []struct {
		name     string
		days     string
		schedule string
		wantErr  string
	}{
		{"hourly", "30", "@hourly", ""},
		{"disabled ignores schedule", "0", "not a schedule", ""},
		{"negative days", "-1", "0 3 * * *", "AUDIT_RETENTION_DAYS"},
		{"bad schedule", "30", "every night", "AUDIT_RETENTION_SCHEDULE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUDIT_RETENTION_DAYS", tt.days)
			t.Setenv("AUDIT_RETENTION_SCHEDULE", tt.schedule)

			_, err := Load()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Production(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("APP_DEBUG", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug mode must be disabled")
	assert.Contains(t, err.Error(), "database SSL")
	assert.Contains(t, err.Error(), "redis password")
	assert.Contains(t, err.Error(), "CORS wildcard")

	t.Setenv("APP_DEBUG", "false")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://deals.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
