package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"`
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	Paths          RuntimePathsConfig    `yaml:"paths"`
	CatalogPath    string                `yaml:"catalog_path"`
	SigningSecret  string                `yaml:"signing_secret"`
	AdminToken     string                `yaml:"admin_token"`
	PublicURL      string                `yaml:"public_url"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Mail           MailConfig            `yaml:"mail"`
	Exports        ExportsConfig         `yaml:"exports"`
	Spam           SpamConfig            `yaml:"spam"`
	Retention      RetentionConfig       `yaml:"retention"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type RuntimePathsConfig struct {
	Logs    string `yaml:"logs"`
	Exports string `yaml:"exports"`
}

// MailConfig configures submission notification emails.
type MailConfig struct {
	Enable bool   `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
}

type ExportsConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config points CSV exports at an S3-compatible bucket. Exports to S3 are
// disabled while Bucket is empty.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

type SpamConfig struct {
	HoneypotField      string `yaml:"honeypot_field"`
	MinSubmitSeconds   int    `yaml:"min_submit_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type RetentionConfig struct {
	WebhookEventsDays int `yaml:"webhook_events_days"`
}

type rawAppConfig struct {
	Port           int                `yaml:"port"`
	DSN            string             `yaml:"dsn"`
	RedisURL       string             `yaml:"redis_url"`
	Database       rawDatabaseConfig  `yaml:"database"`
	Redis          rawRedisConfig     `yaml:"redis"`
	Env            string             `yaml:"env"`
	Paths          rawPathsConfig     `yaml:"paths"`
	LogDir         string             `yaml:"log_dir"`
	CatalogPath    string             `yaml:"catalog_path"`
	SigningSecret  string             `yaml:"signing_secret"`
	AdminToken     string             `yaml:"admin_token"`
	PublicURL      string             `yaml:"public_url"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Mail           rawMailConfig      `yaml:"mail"`
	Exports        rawExportsConfig   `yaml:"exports"`
	Spam           rawSpamConfig      `yaml:"spam"`
	Retention      rawRetentionConfig `yaml:"retention"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawPathsConfig struct {
	Logs    string `yaml:"logs"`
	Exports string `yaml:"exports"`
}

type rawMailConfig struct {
	Enable *bool  `yaml:"enable"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	From   string `yaml:"from"`
}

type rawExportsConfig struct {
	S3 rawS3Config `yaml:"s3"`
}

type rawS3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       *bool  `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

type rawSpamConfig struct {
	HoneypotField      *string `yaml:"honeypot_field"`
	MinSubmitSeconds   *int    `yaml:"min_submit_seconds"`
	RateLimitPerMinute *int    `yaml:"rate_limit_per_minute"`
}

type rawRetentionConfig struct {
	WebhookEventsDays *int `yaml:"webhook_events_days"`
}
