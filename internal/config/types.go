package config

import "time"

// Config is the top-level configuration structure for rulesync.
type Config struct {
	// Namespace restricts watching to a single namespace (empty: all).
	Namespace string `yaml:"namespace,omitempty"`

	// OutputPath is where the combined rules file is written.
	OutputPath string `yaml:"outputPath,omitempty"`

	// SyncIntervalSeconds is the periodic full-sync interval in seconds.
	SyncIntervalSeconds int `yaml:"syncInterval,omitempty"`

	// LogLevel is the logging verbosity (DEBUG, INFO, WARNING, ERROR).
	LogLevel string `yaml:"logLevel,omitempty"`

	// StatusWorkers bounds the number of concurrent status writes.
	StatusWorkers int `yaml:"statusWorkers,omitempty"`

	// StatusRetries bounds retries of a conflicted status write per cycle.
	StatusRetries int `yaml:"statusRetries,omitempty"`
}

// SyncInterval returns the full-sync interval as a duration.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}
