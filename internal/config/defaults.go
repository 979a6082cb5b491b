package config

const (
	// DefaultOutputPath is the conventional location the conductor reads
	// the combined rules file from.
	DefaultOutputPath = "/etc/ironic/inspection_rules.yaml"

	// DefaultSyncIntervalSeconds is the periodic full-sync interval.
	DefaultSyncIntervalSeconds = 30

	// DefaultStatusWorkers bounds concurrent status writes.
	DefaultStatusWorkers = 4

	// DefaultStatusRetries bounds conflict retries of one status write.
	DefaultStatusRetries = 3
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		Namespace:           "",
		OutputPath:          DefaultOutputPath,
		SyncIntervalSeconds: DefaultSyncIntervalSeconds,
		LogLevel:            "INFO",
		StatusWorkers:       DefaultStatusWorkers,
		StatusRetries:       DefaultStatusRetries,
	}
}
