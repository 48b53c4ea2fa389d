package config

import "fmt"

// Config is the umbrella configuration object returned by Initialize and
// threaded through the server, schedulers, and external clients.
type Config struct {
	configDir string

	Defaults  *Defaults
	Queue     *QueueConfig
	Retention *RetentionConfig

	Database    *DatabaseConfig
	Redis       *RedisConfig
	Slack       *SlackConfig
	ObjectStore *ObjectStoreConfig
	Mailer      *MailerConfig
	Sentry      *SentryConfig
	LLM         *LLMConfig
	CORS        *CORSConfig

	ExternalClients  *ExternalClientsConfig
	RateLimit        *RateLimitConfig
	ResponseCache    *ResponseCacheConfig
	TenantConcurrency *TenantConcurrencyConfig

	webhookSources map[string]*WebhookSourceConfig
	cronSecretEnv  string
}

// Initialize is defined in loader.go.

// ConfigStats contains statistics about loaded configuration, surfaced in
// startup logs.
type ConfigStats struct {
	WebhookSources int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{WebhookSources: len(c.webhookSources)}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// WebhookSource retrieves the signing configuration for a named source
// ("meetingbaas", "fathom", "stripe", "sentry").
func (c *Config) WebhookSource(name string) (*WebhookSourceConfig, error) {
	src, ok := c.webhookSources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWebhookSecretNotFound, name)
	}
	return src, nil
}

// CronSecretEnv returns the env var name holding CRON_SECRET.
func (c *Config) CronSecretEnv() string {
	return c.cronSecretEnv
}
