package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// WebhookEventRetentionDays is how many days to keep ingested webhook
	// event rows (and their raw payloads) before deletion.
	WebhookEventRetentionDays int `yaml:"webhook_event_retention_days"`

	// NotificationHistoryTTL is the maximum age of delivered notification
	// records before deletion. Undelivered/failed records are never swept.
	NotificationHistoryTTL time.Duration `yaml:"notification_history_ttl"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		WebhookEventRetentionDays: 90,
		NotificationHistoryTTL:    30 * 24 * time.Hour,
		CleanupInterval:           12 * time.Hour,
	}
}
