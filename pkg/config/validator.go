package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast — stops at the
// first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateQueue(); err != nil {
		return fmt.Errorf("queue validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	if err := v.validateWebhookSources(); err != nil {
		return fmt.Errorf("webhook source validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}
	if err := v.validateObjectStore(); err != nil {
		return fmt.Errorf("object store validation failed: %w", err)
	}
	if err := v.validateMailer(); err != nil {
		return fmt.Errorf("mailer validation failed: %w", err)
	}
	if err := v.validateExternalClients(); err != nil {
		return fmt.Errorf("external client validation failed: %w", err)
	}
	if err := v.validateCronSecret(); err != nil {
		return fmt.Errorf("cron secret validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateQueue() error {
	q := v.cfg.Queue
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentDeliveries < 1 {
		return fmt.Errorf("max_concurrent_deliveries must be at least 1, got %d", q.MaxConcurrentDeliveries)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", q.PollIntervalJitter)
	}
	if q.PollIntervalJitter >= q.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", q.PollIntervalJitter, q.PollInterval)
	}
	if q.ClaimTimeout <= 0 {
		return fmt.Errorf("claim_timeout must be positive, got %v", q.ClaimTimeout)
	}
	if q.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", q.GracefulShutdownTimeout)
	}
	if q.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", q.OrphanDetectionInterval)
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return fmt.Errorf("defaults configuration is nil")
	}
	if d.NotificationCooldown <= 0 {
		return fmt.Errorf("notification_cooldown must be positive, got %v", d.NotificationCooldown)
	}
	if d.FatigueMultiplier <= 1 {
		return fmt.Errorf("fatigue_multiplier must be greater than 1, got %v", d.FatigueMultiplier)
	}
	if d.FatigueWindow <= 0 {
		return fmt.Errorf("fatigue_window must be positive, got %v", d.FatigueWindow)
	}
	return nil
}

func (v *Validator) validateWebhookSources() error {
	if len(v.cfg.webhookSources) == 0 {
		return fmt.Errorf("no webhook sources configured")
	}
	for name, src := range v.cfg.webhookSources {
		if src.SecretEnv == "" {
			return NewValidationError("webhook_source", name, fmt.Errorf("%w: secret_env", ErrMissingRequiredField))
		}
		if os.Getenv(src.SecretEnv) == "" {
			return NewValidationError("webhook_source", name, fmt.Errorf("environment variable %s is not set", src.SecretEnv))
		}
		if src.ReplayWindow <= 0 {
			return NewValidationError("webhook_source", name, fmt.Errorf("%w: replay_window must be positive", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	db := v.cfg.Database
	if db == nil {
		return fmt.Errorf("database configuration is nil")
	}
	if db.DSNEnv == "" {
		return fmt.Errorf("dsn_env is required")
	}
	if os.Getenv(db.DSNEnv) == "" {
		return fmt.Errorf("environment variable %s is not set", db.DSNEnv)
	}
	if db.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1, got %d", db.MaxOpenConns)
	}
	if db.MaxIdleConns < 0 || db.MaxIdleConns > db.MaxOpenConns {
		return fmt.Errorf("max_idle_conns must be between 0 and max_open_conns, got %d", db.MaxIdleConns)
	}
	return nil
}

func (v *Validator) validateSlack() error {
	s := v.cfg.Slack
	if s == nil || !s.Enabled {
		return nil
	}
	if s.SigningSecret == "" {
		return fmt.Errorf("system.slack.signing_secret_env is required when Slack is enabled")
	}
	if os.Getenv(s.SigningSecret) == "" {
		return fmt.Errorf("system.slack.signing_secret_env: environment variable %s is not set", s.SigningSecret)
	}
	return nil
}

func (v *Validator) validateObjectStore() error {
	o := v.cfg.ObjectStore
	if o == nil || (o.Bucket == "" && o.Region == "") {
		// Not configured — the loader always fills in the TTL default.
		return nil
	}
	if o.Bucket == "" {
		return fmt.Errorf("system.object_store.bucket is required")
	}
	if o.Region == "" {
		return fmt.Errorf("system.object_store.region is required")
	}
	if o.PresignedTTL <= 0 {
		return fmt.Errorf("system.object_store.presigned_ttl must be positive, got %v", o.PresignedTTL)
	}
	return nil
}

func (v *Validator) validateMailer() error {
	m := v.cfg.Mailer
	if m == nil || !m.Enabled {
		return nil
	}
	if m.APIKeyEnv == "" {
		return fmt.Errorf("system.mailer.api_key_env is required when mailer is enabled")
	}
	if os.Getenv(m.APIKeyEnv) == "" {
		return fmt.Errorf("system.mailer.api_key_env: environment variable %s is not set", m.APIKeyEnv)
	}
	if m.FromAddress == "" {
		return fmt.Errorf("system.mailer.from_address is required when mailer is enabled")
	}
	return nil
}

func (v *Validator) validateExternalClients() error {
	ec := v.cfg.ExternalClients
	if ec == nil {
		return nil
	}
	if err := v.validateOAuthProvider("meeting_bot", ec.MeetingBot); err != nil {
		return err
	}
	if err := v.validateOAuthProvider("ats", ec.ATS); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateOAuthProvider(name string, p OAuthProviderConfig) error {
	if p.BaseURL == "" && p.TokenURL == "" && p.ClientIDEnv == "" {
		// Not configured — the corresponding client is disabled.
		return nil
	}
	if p.BaseURL == "" {
		return NewValidationError("external_clients", name, fmt.Errorf("%w: base_url", ErrMissingRequiredField))
	}
	if p.TokenURL == "" {
		return NewValidationError("external_clients", name, fmt.Errorf("%w: token_url", ErrMissingRequiredField))
	}
	if p.ClientIDEnv == "" || os.Getenv(p.ClientIDEnv) == "" {
		return NewValidationError("external_clients", name, fmt.Errorf("client_id_env %q not set", p.ClientIDEnv))
	}
	if p.ClientSecretEnv == "" || os.Getenv(p.ClientSecretEnv) == "" {
		return NewValidationError("external_clients", name, fmt.Errorf("client_secret_env %q not set", p.ClientSecretEnv))
	}
	return nil
}

// validateCronSecret enforces fail-closed semantics: a missing CRON_SECRET
// is not itself a load-time error (it disables scheduled entry points
// rather than crashing the whole server); nothing logs it at startup, and
// pkg/auth rejects each cron request while it is unset. Here we only
// validate the env var name is non-empty.
func (v *Validator) validateCronSecret() error {
	if v.cfg.cronSecretEnv == "" {
		return fmt.Errorf("cron_secret_env must not be empty")
	}
	return nil
}
