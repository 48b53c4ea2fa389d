package config

import "time"

// QueueConfig contains worker-pool configuration for the background pollers
// that claim and process queued work: media uploads, transcript fetches,
// and outbound notification deliveries. Only the validator reads these
// values; the pollers run on fixed cron schedules with fixed batch sizes
// and do not consult QueueConfig.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per poller.
	// Each worker independently claims and processes one item at a time.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentDeliveries is the global limit of in-flight notification
	// deliveries across all workers, enforced independently of per-tenant
	// concurrency limits.
	MaxConcurrentDeliveries int `yaml:"max_concurrent_deliveries"`

	// PollInterval is the base interval for checking for claimable work.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// ClaimTimeout is the maximum time a claimed item may remain locked
	// before another worker is allowed to reclaim it.
	ClaimTimeout time.Duration `yaml:"claim_timeout"`

	// GracefulShutdownTimeout is the max time to wait for in-flight work to
	// finish during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for claimed-but-stalled work.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentDeliveries: 20,
		PollInterval:            2 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		ClaimTimeout:            5 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
		OrphanDetectionInterval: 5 * time.Minute,
	}
}
