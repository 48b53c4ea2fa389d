package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// OrchestratorYAMLConfig represents the complete orchestrator.yaml file structure.
type OrchestratorYAMLConfig struct {
	System           *SystemYAMLConfig             `yaml:"system"`
	WebhookSources   map[string]WebhookSourceConfig `yaml:"webhook_sources"`
	Defaults         *Defaults                      `yaml:"defaults"`
	Queue            *QueueConfig                   `yaml:"queue"`
	ExternalClients  *ExternalClientsConfig         `yaml:"external_clients"`
	RateLimit        *RateLimitConfig               `yaml:"rate_limit"`
	ResponseCache     *ResponseCacheConfig           `yaml:"response_cache"`
	TenantConcurrency *TenantConcurrencyConfig       `yaml:"tenant_concurrency"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	Database    *DatabaseConfig    `yaml:"database"`
	Redis       *RedisConfig       `yaml:"redis"`
	Slack       *SlackConfig       `yaml:"slack"`
	ObjectStore *ObjectStoreConfig `yaml:"object_store"`
	Mailer      *MailerConfig      `yaml:"mailer"`
	Sentry      *SentryConfig      `yaml:"sentry"`
	LLM         *LLMConfig         `yaml:"llm"`
	CORS        *CORSConfig        `yaml:"cors"`
	Retention   *RetentionConfig   `yaml:"retention"`
	CronSecretEnv string           `yaml:"cron_secret_env"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load orchestrator.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined webhook sources
//  5. Apply built-in defaults for anything left unset
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized", "webhook_sources", stats.WebhookSources)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	raw, err := loader.loadOrchestratorYAML()
	if err != nil {
		return nil, NewLoadError("orchestrator.yaml", err)
	}

	builtinSources := GetBuiltinWebhookSources()
	webhookSources := mergeWebhookSources(builtinSources, raw.WebhookSources)

	defaults := raw.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	applyDefaultFallbacks(defaults)

	queueCfg := DefaultQueueConfig()
	if raw.Queue != nil {
		if err := mergo.Merge(queueCfg, raw.Queue, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge queue config: %w", err)
		}
	}

	retentionCfg := resolveRetentionConfig(raw.System)
	dbCfg := resolveDatabaseConfig(raw.System)
	redisCfg := resolveRedisConfig(raw.System)
	slackCfg := resolveSlackConfig(raw.System)
	objectStoreCfg := resolveObjectStoreConfig(raw.System)
	mailerCfg := resolveMailerConfig(raw.System)
	sentryCfg := resolveSentryConfig(raw.System)
	llmCfg := resolveLLMConfig(raw.System)
	corsCfg := resolveCORSConfig(raw.System)
	cronSecretEnv := resolveCronSecretEnv(raw.System)

	externalClients := raw.ExternalClients
	if externalClients == nil {
		externalClients = &ExternalClientsConfig{}
	}

	rateLimit := raw.RateLimit
	if rateLimit == nil {
		rateLimit = &RateLimitConfig{RequestsPerWindow: 100, Window: defaultRateLimitWindow}
	}

	responseCache := raw.ResponseCache
	if responseCache == nil {
		responseCache = &ResponseCacheConfig{MaxEntries: 1000, TTL: defaultResponseCacheTTL}
	}

	tenantConcurrency := raw.TenantConcurrency
	if tenantConcurrency == nil {
		tenantConcurrency = &TenantConcurrencyConfig{MaxInFlightPerOrg: 100}
	}

	return &Config{
		configDir:         configDir,
		Defaults:          defaults,
		Queue:             queueCfg,
		Retention:         retentionCfg,
		Database:          dbCfg,
		Redis:             redisCfg,
		Slack:             slackCfg,
		ObjectStore:       objectStoreCfg,
		Mailer:            mailerCfg,
		Sentry:            sentryCfg,
		LLM:               llmCfg,
		CORS:              corsCfg,
		ExternalClients:   externalClients,
		RateLimit:         rateLimit,
		ResponseCache:     responseCache,
		TenantConcurrency: tenantConcurrency,
		webhookSources:    webhookSources,
		cronSecretEnv:     cronSecretEnv,
	}, nil
}

func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadOrchestratorYAML() (*OrchestratorYAMLConfig, error) {
	var cfg OrchestratorYAMLConfig
	cfg.WebhookSources = make(map[string]WebhookSourceConfig)

	if err := l.loadYAML("orchestrator.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func resolveRetentionConfig(sys *SystemYAMLConfig) *RetentionConfig {
	cfg := DefaultRetentionConfig()
	if sys == nil || sys.Retention == nil {
		return cfg
	}
	r := sys.Retention
	if r.WebhookEventRetentionDays > 0 {
		cfg.WebhookEventRetentionDays = r.WebhookEventRetentionDays
	}
	if r.NotificationHistoryTTL > 0 {
		cfg.NotificationHistoryTTL = r.NotificationHistoryTTL
	}
	if r.CleanupInterval > 0 {
		cfg.CleanupInterval = r.CleanupInterval
	}
	return cfg
}

func resolveDatabaseConfig(sys *SystemYAMLConfig) *DatabaseConfig {
	cfg := &DatabaseConfig{DSNEnv: "DATABASE_URL", MaxOpenConns: 20, MaxIdleConns: 5}
	if sys != nil && sys.Database != nil {
		if sys.Database.DSNEnv != "" {
			cfg.DSNEnv = sys.Database.DSNEnv
		}
		if sys.Database.MaxOpenConns > 0 {
			cfg.MaxOpenConns = sys.Database.MaxOpenConns
		}
		if sys.Database.MaxIdleConns > 0 {
			cfg.MaxIdleConns = sys.Database.MaxIdleConns
		}
		if sys.Database.ConnMaxLifetime > 0 {
			cfg.ConnMaxLifetime = sys.Database.ConnMaxLifetime
		}
	}
	return cfg
}

func resolveRedisConfig(sys *SystemYAMLConfig) *RedisConfig {
	cfg := &RedisConfig{URLEnv: "REDIS_URL"}
	if sys != nil && sys.Redis != nil && sys.Redis.URLEnv != "" {
		cfg.URLEnv = sys.Redis.URLEnv
	}
	return cfg
}

func resolveSlackConfig(sys *SystemYAMLConfig) *SlackConfig {
	if sys != nil && sys.Slack != nil {
		return sys.Slack
	}
	return &SlackConfig{Enabled: false}
}

func resolveObjectStoreConfig(sys *SystemYAMLConfig) *ObjectStoreConfig {
	cfg := &ObjectStoreConfig{PresignedTTL: defaultPresignedTTL}
	if sys != nil && sys.ObjectStore != nil {
		o := sys.ObjectStore
		if o.Bucket != "" {
			cfg.Bucket = o.Bucket
		}
		if o.Region != "" {
			cfg.Region = o.Region
		}
		if o.PresignedTTL > 0 {
			cfg.PresignedTTL = o.PresignedTTL
		}
		cfg.AccessKeyEnv = o.AccessKeyEnv
		cfg.SecretKeyEnv = o.SecretKeyEnv
	}
	return cfg
}

func resolveMailerConfig(sys *SystemYAMLConfig) *MailerConfig {
	if sys != nil && sys.Mailer != nil {
		return sys.Mailer
	}
	return &MailerConfig{Enabled: false}
}

func resolveSentryConfig(sys *SystemYAMLConfig) *SentryConfig {
	cfg := &SentryConfig{SampleRate: 1.0}
	if sys != nil && sys.Sentry != nil {
		if sys.Sentry.DSNEnv != "" {
			cfg.DSNEnv = sys.Sentry.DSNEnv
		}
		if sys.Sentry.Environment != "" {
			cfg.Environment = sys.Sentry.Environment
		}
		if sys.Sentry.SampleRate > 0 {
			cfg.SampleRate = sys.Sentry.SampleRate
		}
	}
	return cfg
}

func resolveLLMConfig(sys *SystemYAMLConfig) *LLMConfig {
	cfg := &LLMConfig{Provider: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-3-5-haiku-latest"}
	if sys != nil && sys.LLM != nil {
		if sys.LLM.Provider != "" {
			cfg.Provider = sys.LLM.Provider
		}
		if sys.LLM.APIKeyEnv != "" {
			cfg.APIKeyEnv = sys.LLM.APIKeyEnv
		}
		if sys.LLM.Model != "" {
			cfg.Model = sys.LLM.Model
		}
	}
	return cfg
}

func resolveCORSConfig(sys *SystemYAMLConfig) *CORSConfig {
	if sys != nil && sys.CORS != nil {
		return sys.CORS
	}
	return &CORSConfig{}
}

func resolveCronSecretEnv(sys *SystemYAMLConfig) string {
	if sys != nil && sys.CronSecretEnv != "" {
		return sys.CronSecretEnv
	}
	return "CRON_SECRET"
}

func applyDefaultFallbacks(d *Defaults) {
	if d.NotificationCooldown == 0 {
		d.NotificationCooldown = defaultNotificationCooldown
	}
	if d.FatigueMultiplier == 0 {
		d.FatigueMultiplier = defaultFatigueMultiplier
	}
	if d.FatigueWindow == 0 {
		d.FatigueWindow = defaultFatigueWindow
	}
	if d.DefaultTimezone == "" {
		d.DefaultTimezone = "UTC"
	}
	if d.WebhookMasking == nil {
		d.WebhookMasking = &WebhookMaskingDefaults{Enabled: true}
	}
}
