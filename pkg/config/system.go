package config

import "time"

// DatabaseConfig holds the Postgres connection settings for the
// transactional, row-level-multi-tenant store.
type DatabaseConfig struct {
	DSNEnv          string        `yaml:"dsn_env"` // env var holding the Postgres DSN
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds the connection settings for the sliding-window rate
// limiter's backing store. The ETag response cache is in-memory and does
// not use redis.
type RedisConfig struct {
	URLEnv string `yaml:"url_env"` // env var holding the redis connection URL
}

// SlackConfig holds platform-level Slack app settings. Per-tenant bot
// tokens live in the database, not here.
type SlackConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ClientIDEnv   string `yaml:"client_id_env,omitempty"`
	SigningSecret string `yaml:"signing_secret_env,omitempty"`
}

// ObjectStoreConfig holds S3-compatible object storage settings used for
// presigned recording/transcript uploads.
type ObjectStoreConfig struct {
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	PresignedTTL    time.Duration `yaml:"presigned_ttl"`
	AccessKeyEnv    string        `yaml:"access_key_env,omitempty"`
	SecretKeyEnv    string        `yaml:"secret_key_env,omitempty"`
}

// MailerConfig holds SendGrid settings for the email notification channel.
type MailerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKeyEnv   string `yaml:"api_key_env"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name,omitempty"`
}

// SentryConfig holds the platform's own error-reporting sink, distinct
// from the Sentry-issue webhook source ingested under §4.1.
type SentryConfig struct {
	DSNEnv      string  `yaml:"dsn_env,omitempty"`
	Environment string  `yaml:"environment,omitempty"`
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
}

// LLMConfig holds the generic LLM client used by the sequence/skill
// runtime for free-text summarization and structured extraction steps.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// CORSConfig lists the origins the API will answer preflight requests for.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}
