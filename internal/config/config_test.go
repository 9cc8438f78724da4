package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "root:password@tcp(127.0.0.1:3306)/forms?charset=utf8mb4&loc=Local&parseTime=true", cfg.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, devSigningSecret, cfg.SigningSecret)
	assert.Equal(t, "_hp", cfg.Spam.HoneypotField)
	assert.Equal(t, 2, cfg.Spam.MinSubmitSeconds)
	assert.Equal(t, 30, cfg.Retention.WebhookEventsDays)
	assert.False(t, cfg.Exports.S3.Enabled())
}

func TestParseOverrides(t *testing.T) {
	doc := `
port: 8080
env: prod
signing_secret: s3cret
admin_token: " admin "
public_url: https://forms.example.com/
allowed_origins: [" https://a.example.com/ ", ""]
database:
  host: db.internal
  name: builder
  params:
    timeout: 5s
redis:
  url: cache:6380/2
mail:
  enable: true
  host: smtp.example.com
  user: forms@example.com
exports:
  s3:
    bucket: exports
    endpoint: https://minio.local/
    path_style: true
    prefix: /forms/
spam:
  min_submit_seconds: 0
  rate_limit_per_minute: 3
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "admin", cfg.AdminToken)
	assert.Equal(t, "https://forms.example.com", cfg.PublicURL)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "root:password@tcp(db.internal:3306)/builder?charset=utf8mb4&loc=Local&parseTime=true&timeout=5s", cfg.DSN)
	assert.Equal(t, "redis://cache:6380/2", cfg.RedisURL)
	assert.Equal(t, "forms@example.com", cfg.Mail.From)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.True(t, cfg.Exports.S3.Enabled())
	assert.Equal(t, "https://minio.local", cfg.Exports.S3.Endpoint)
	assert.Equal(t, "forms", cfg.Exports.S3.Prefix)
	assert.True(t, cfg.Exports.S3.PathStyle)
	assert.Equal(t, 0, cfg.Spam.MinSubmitSeconds)
	assert.Equal(t, 3, cfg.Spam.RateLimitPerMinute)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("meilisearch:\n  enable: true\n"))
	require.Error(t, err)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"port", "port: 70000\n"},
		{"redis db", "redis:\n  db: -1\n"},
		{"production secret", "env: production\n"},
		{"mail host", "mail:\n  enable: true\n  from: a@example.com\n"},
		{"mail from", "mail:\n  enable: true\n  host: smtp.example.com\n  from: nobody\n"},
		{"spam", "spam:\n  rate_limit_per_minute: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\npaths:\n  exports: "+dir+"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, filepath.Clean(dir), cfg.ExportDir())

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("port: 0\nenv: production\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
