package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrchestratorYAML = `
webhook_sources:
  stripe:
    secret_env: STRIPE_WEBHOOK_SECRET
    replay_window: 5m
system:
  database:
    dsn_env: DATABASE_URL
  cron_secret_env: CRON_SECRET
defaults:
  notification_cooldown: 10m
queue:
  worker_count: 8
`

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.yaml"), []byte(contents), 0o600))
	return dir
}

func TestInitializeLoadsAndValidates(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("MEETINGBAAS_WEBHOOK_SECRET", "mb_test")
	t.Setenv("FATHOM_WEBHOOK_SECRET", "fathom_test")
	t.Setenv("SENTRY_BRIDGE_WEBHOOK_SECRET", "sentry_test")
	t.Setenv("DATABASE_URL", "postgres://localhost/orchestrator")

	dir := writeTestConfig(t, testOrchestratorYAML)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Queue.WorkerCount)
	assert.Equal(t, "CRON_SECRET", cfg.CronSecretEnv())

	src, err := cfg.WebhookSource("stripe")
	require.NoError(t, err)
	assert.Equal(t, "whsec_test", os.Getenv(src.SecretEnv))

	// Built-in sources survive merge alongside the user override.
	_, err = cfg.WebhookSource("meetingbaas")
	require.NoError(t, err)
}

func TestInitializeFailsOnMissingFile(t *testing.T) {
	_, err := Initialize(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestInitializeExpandsEnvInYAML(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("MEETINGBAAS_WEBHOOK_SECRET", "mb_test")
	t.Setenv("FATHOM_WEBHOOK_SECRET", "fathom_test")
	t.Setenv("SENTRY_BRIDGE_WEBHOOK_SECRET", "sentry_test")
	t.Setenv("DATABASE_URL", "postgres://localhost/orchestrator")
	t.Setenv("ORG_CRON_SECRET_NAME", "ORG_CRON_SECRET")

	yamlWithVar := `
webhook_sources:
  stripe:
    secret_env: STRIPE_WEBHOOK_SECRET
    replay_window: 5m
system:
  database:
    dsn_env: DATABASE_URL
  cron_secret_env: ${ORG_CRON_SECRET_NAME}
`
	dir := writeTestConfig(t, yamlWithVar)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "ORG_CRON_SECRET", cfg.CronSecretEnv())
}
