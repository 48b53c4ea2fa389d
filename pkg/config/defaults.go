package config

import "time"

// Defaults contains system-wide default configurations used when a rule,
// channel, or sequence doesn't specify its own override.
//
// The loader fills in and the validator checks these values, but no other
// package reads them: notifications.FrequencyLimiter applies its own
// built-in cooldown and fatigue constants, and webhookingest.Pipeline stores
// raw bodies without masking.
type Defaults struct {
	// NotificationCooldown is the minimum spacing between two notifications
	// of the same kind to the same recipient.
	NotificationCooldown time.Duration `yaml:"notification_cooldown,omitempty"`

	// FatigueMultiplier scales the cooldown upward with every additional
	// notification sent to a recipient within the fatigue window.
	FatigueMultiplier float64 `yaml:"fatigue_multiplier,omitempty" validate:"omitempty,gt=1"`

	// FatigueWindow is the lookback window used to count recent
	// notifications when applying the fatigue multiplier.
	FatigueWindow time.Duration `yaml:"fatigue_window,omitempty"`

	// DefaultTimezone is used to render timestamps in notification copy
	// when a recipient has no stored preference.
	DefaultTimezone string `yaml:"default_timezone,omitempty"`

	// WebhookMasking controls redaction of sensitive fields in stored
	// raw webhook payloads.
	WebhookMasking *WebhookMaskingDefaults `yaml:"webhook_masking,omitempty"`
}

// WebhookMaskingDefaults holds inbound payload masking settings. They are
// loaded and kept on Config only; webhook bodies are persisted unmasked.
type WebhookMaskingDefaults struct {
	Enabled      bool     `yaml:"enabled"`
	FieldPaths   []string `yaml:"field_paths,omitempty"`
}
