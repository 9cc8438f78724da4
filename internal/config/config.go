package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w in %q", err, path)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML config document. Unknown keys are
// rejected.
func Parse(content []byte) (*AppConfig, error) {
	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyRawAppConfig(&cfg, raw)
	if cfg.SigningSecret == "" && cfg.IsDev() {
		cfg.SigningSecret = devSigningSecret
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Mail: MailConfig{Port: defaultMailPort},
		Exports: ExportsConfig{
			S3: S3Config{Region: defaultS3Region},
		},
		Spam: SpamConfig{
			HoneypotField:      defaultHoneypotField,
			MinSubmitSeconds:   defaultMinSubmitSeconds,
			RateLimitPerMinute: defaultRateLimitPerMinute,
		},
		Retention: RetentionConfig{WebhookEventsDays: defaultWebhookEventDays},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.Paths.Exports); v != "" {
		cfg.Paths.Exports = v
	}
	if v := strings.TrimSpace(raw.CatalogPath); v != "" {
		cfg.CatalogPath = v
	}
	if v := strings.TrimSpace(raw.SigningSecret); v != "" {
		cfg.SigningSecret = v
	}
	if v := strings.TrimSpace(raw.AdminToken); v != "" {
		cfg.AdminToken = v
	}
	if v := strings.TrimSpace(raw.PublicURL); v != "" {
		cfg.PublicURL = strings.TrimRight(v, "/")
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}

	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)
	cfg.Exports.S3 = applyRawS3Config(cfg.Exports.S3, raw.Exports.S3)

	if raw.Spam.HoneypotField != nil {
		cfg.Spam.HoneypotField = strings.TrimSpace(*raw.Spam.HoneypotField)
	}
	if raw.Spam.MinSubmitSeconds != nil {
		cfg.Spam.MinSubmitSeconds = *raw.Spam.MinSubmitSeconds
	}
	if raw.Spam.RateLimitPerMinute != nil {
		cfg.Spam.RateLimitPerMinute = *raw.Spam.RateLimitPerMinute
	}
	if raw.Retention.WebhookEventsDays != nil {
		cfg.Retention.WebhookEventsDays = *raw.Retention.WebhookEventsDays
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Paths = normalizeRuntimePaths(cfg.Paths)
	cfg.Env = normalizeEnv(cfg.Env)
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	cfg := current
	db := raw.Database
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(db.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(db.Host); v != "" {
		cfg.Host = v
	}
	if db.Port != 0 {
		cfg.Port = db.Port
	}
	if v := strings.TrimSpace(db.User); v != "" {
		cfg.User = v
	}
	if db.Password != "" {
		cfg.Password = db.Password
	}
	if v := strings.TrimSpace(db.Name); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(db.Charset); v != "" {
		cfg.Charset = v
	}
	if db.ParseTime != nil {
		cfg.ParseTime = *db.ParseTime
	}
	if v := strings.TrimSpace(db.Loc); v != "" {
		cfg.Loc = v
	}
	if db.Params != nil {
		cfg.Params = db.Params
	}
	return normalizeDatabaseConfig(cfg)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	r := raw.Redis
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(r.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(r.Host); v != "" {
		cfg.Host = v
	}
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if v := strings.TrimSpace(r.Username); v != "" {
		cfg.Username = v
	}
	if r.Password != "" {
		cfg.Password = r.Password
	}
	if r.DB != nil {
		cfg.DB = *r.DB
	}
	if r.TLS != nil {
		cfg.TLS = *r.TLS
	}
	return normalizeRedisConfig(cfg)
}

func applyRawMailConfig(cfg MailConfig, raw rawMailConfig) MailConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.TrimSpace(raw.Host); v != "" {
		cfg.Host = v
	}
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.User); v != "" {
		cfg.User = v
	}
	if raw.Pass != "" {
		cfg.Pass = raw.Pass
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return cfg
}

func applyRawS3Config(cfg S3Config, raw rawS3Config) S3Config {
	if v := strings.TrimSpace(raw.Bucket); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(raw.Region); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(raw.Endpoint); v != "" {
		cfg.Endpoint = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.AccessKeyID); v != "" {
		cfg.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.SecretAccessKey); v != "" {
		cfg.SecretAccessKey = v
	}
	if raw.PathStyle != nil {
		cfg.PathStyle = *raw.PathStyle
	}
	if v := strings.Trim(strings.TrimSpace(raw.Prefix), "/"); v != "" {
		cfg.Prefix = v
	}
	return cfg
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.Spam.MinSubmitSeconds < 0 {
		return fmt.Errorf("invalid spam.min_submit_seconds %d, expected >= 0", c.Spam.MinSubmitSeconds)
	}
	if c.Spam.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid spam.rate_limit_per_minute %d, expected >= 0", c.Spam.RateLimitPerMinute)
	}
	if c.Retention.WebhookEventsDays < 0 {
		return fmt.Errorf("invalid retention.webhook_events_days %d, expected >= 0", c.Retention.WebhookEventsDays)
	}
	if c.Mail.Enable {
		if c.Mail.Host == "" {
			return fmt.Errorf("mail.host is required when mail is enabled")
		}
		if _, err := mail.ParseAddress(c.Mail.From); err != nil {
			return fmt.Errorf("invalid mail.from %q: %w", c.Mail.From, err)
		}
	}
	if !c.IsDev() && c.SigningSecret == "" {
		return fmt.Errorf("signing_secret is required outside development")
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) ExportDir() string {
	if c == nil {
		return ResolveRuntimePath("", "exports")
	}
	return ResolveRuntimePath(c.Paths.Exports, "exports")
}

// Enabled reports whether exports can be uploaded to a bucket.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}
