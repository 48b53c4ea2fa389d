package config

// mergeWebhookSources merges built-in and user-defined webhook source
// configurations. User-defined sources override built-in ones with the
// same name.
func mergeWebhookSources(builtin, user map[string]WebhookSourceConfig) map[string]*WebhookSourceConfig {
	result := make(map[string]*WebhookSourceConfig, len(builtin)+len(user))

	for name, src := range builtin {
		srcCopy := src
		result[name] = &srcCopy
	}
	for name, src := range user {
		srcCopy := src
		result[name] = &srcCopy
	}

	return result
}
