package config

import "time"

const (
	defaultNotificationCooldown = 15 * time.Minute
	defaultFatigueMultiplier    = 1.5
	defaultFatigueWindow        = 24 * time.Hour
	defaultRateLimitWindow      = 1 * time.Minute
	defaultResponseCacheTTL     = 5 * time.Minute
	defaultPresignedTTL         = 7 * 24 * time.Hour
)

// GetBuiltinWebhookSources returns the webhook sources shipped by default.
// Every deployment still must supply a secret via the referenced env var;
// this only fixes the known source names and their replay windows so a
// user config only needs to add new sources or override env var names.
func GetBuiltinWebhookSources() map[string]WebhookSourceConfig {
	return map[string]WebhookSourceConfig{
		"meetingbaas": {SecretEnv: "MEETINGBAAS_WEBHOOK_SECRET", ReplayWindow: 5 * time.Minute},
		"fathom":      {SecretEnv: "FATHOM_WEBHOOK_SECRET", ReplayWindow: 5 * time.Minute},
		"stripe":      {SecretEnv: "STRIPE_WEBHOOK_SECRET", ReplayWindow: 5 * time.Minute},
		"sentry":      {SecretEnv: "SENTRY_BRIDGE_WEBHOOK_SECRET", ReplayWindow: 5 * time.Minute},
	}
}
