package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rulesync/internal/engine"
)

// syncRetryAttempts bounds one-shot retries of a transiently unavailable
// store before the command exits non-zero.
const syncRetryAttempts = 5

// syncCmd defines the sync command structure.
// It performs a single reconcile cycle and exits, for use from jobs and
// provisioning scripts that want the rules file brought up to date once.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the rules file once and exit",
	Long: `Sync lists all InspectionRule resources, writes the combined rules
file and updates each resource's status, then exits. Resources that fail
validation are reported in their status and excluded from the file; they do
not fail the command.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

// runSync is the main entry point for the sync command
func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ruleStore, err := connectStore(ctx, cfg.Namespace, syncRetryAttempts)
	if err != nil {
		return err
	}

	eng, err := buildEngine(cfg, ruleStore)
	if err != nil {
		return err
	}

	var stats engine.CycleStats
	err = withRetry(ctx, "synchronizing rules", syncRetryAttempts, func() error {
		var runErr error
		stats, runErr = eng.RunOnce(ctx)
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("Synchronized %d rules (%d rejected) to %s\n",
		stats.Written, stats.Errors, cfg.OutputPath)
	return nil
}

// init registers the sync command and its flags with the root command.
func init() {
	rootCmd.AddCommand(syncCmd)
	registerSharedFlags(syncCmd)
}
