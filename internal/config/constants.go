package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort       = 2340
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "forms"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultMailPort           = 587
	defaultHoneypotField      = "_hp"
	defaultMinSubmitSeconds   = 2
	defaultRateLimitPerMinute = 10
	defaultWebhookEventDays   = 30
	defaultS3Region           = "us-east-1"

	devSigningSecret = "forms-development-signing-secret"
)
