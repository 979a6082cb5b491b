package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"rulesync/internal/config"
	"rulesync/internal/engine"
	"rulesync/internal/status"
	"rulesync/internal/store"
	"rulesync/internal/writer"
	"rulesync/pkg/logging"
)

// Flags shared by the run and sync commands. Flag values override the
// config file only when the flag was set on the command line.
var (
	flagConfigPath   string
	flagNamespace    string
	flagOutputPath   string
	flagSyncInterval int
	flagLogLevel     string
)

func registerSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagConfigPath, "config", "", "Path to the config file (default: "+config.GetDefaultConfigPath()+")")
	cmd.Flags().StringVar(&flagNamespace, "namespace", "", "Namespace to watch for InspectionRule resources (default: all namespaces)")
	cmd.Flags().StringVar(&flagOutputPath, "output-path", "", "Path of the combined rules file (default: "+config.DefaultOutputPath+")")
	cmd.Flags().IntVar(&flagSyncInterval, "sync-interval", 0, "Seconds between full syncs")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level: DEBUG, INFO, WARNING or ERROR")
}

// loadSettings loads the config file and applies command line overrides.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadConfig(flagConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("namespace") {
		cfg.Namespace = flagNamespace
	}
	if cmd.Flags().Changed("output-path") {
		cfg.OutputPath = flagOutputPath
	}
	if cmd.Flags().Changed("sync-interval") {
		if flagSyncInterval <= 0 {
			return config.Config{}, fmt.Errorf("sync-interval must be positive, got %d", flagSyncInterval)
		}
		cfg.SyncIntervalSeconds = flagSyncInterval
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	return cfg, nil
}

// newStore is replaceable in tests.
var newStore = store.NewKubernetesStore

// Retry shape for store construction and one-shot cycles. Vars so tests can
// shorten the delays.
var (
	retryDelay    = time.Second
	retryMaxDelay = 30 * time.Second
)

// withRetry runs fn with exponential backoff until it succeeds. maxAttempts
// bounds the attempts; zero or negative retries until ctx is cancelled.
func withRetry(ctx context.Context, what string, maxAttempts int, fn func() error) error {
	delay := retryDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", what, attempt, err)
		}

		logging.Warn("Main", "%s failed (attempt %d): %v, retrying in %v", what, attempt, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

// connectStore dials the resource store, retrying construction failures:
// an unreachable API server or a not-yet-installed CRD is a recoverable
// condition, not a reason to exit.
func connectStore(ctx context.Context, namespace string, maxAttempts int) (store.RuleStore, error) {
	var ruleStore store.RuleStore
	err := withRetry(ctx, "connecting to the cluster", maxAttempts, func() error {
		s, err := newStore(namespace)
		if err != nil {
			return err
		}
		ruleStore = s
		return nil
	})
	return ruleStore, err
}

// buildEngine wires the store, writer and reporter into an engine according
// to the effective configuration.
func buildEngine(cfg config.Config, ruleStore store.RuleStore) (*engine.Engine, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return engine.New(engine.Options{
		Store:        ruleStore,
		Writer:       writer.New(cfg.OutputPath),
		Reporter:     status.NewReporter(ruleStore, cfg.StatusWorkers, cfg.StatusRetries),
		Namespace:    cfg.Namespace,
		SyncInterval: cfg.SyncInterval(),
	}), nil
}
