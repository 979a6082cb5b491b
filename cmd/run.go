package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rulesync/pkg/logging"
)

// runCmd defines the run command structure.
// This is the main command of rulesync: it keeps the rules file in sync with
// the cluster until the process is terminated.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller until terminated",
	Long: `Run lists and watches InspectionRule resources and rewrites the
combined rules file whenever they change. A periodic full sync reconciles
state missed by the watch. The controller shuts down cleanly on SIGINT or
SIGTERM, letting an in-flight sync finish its writes.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// runRun is the main entry point for the run command
func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Long-running mode never gives up on an unreachable store: retry
	// construction until it succeeds or the process is told to stop.
	ruleStore, err := connectStore(ctx, cfg.Namespace, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	eng, err := buildEngine(cfg, ruleStore)
	if err != nil {
		return err
	}

	logging.Info("Main", "rulesync %s starting (namespace=%q output=%s interval=%s)",
		GetVersion(), cfg.Namespace, cfg.OutputPath, cfg.SyncInterval())

	return eng.Run(ctx)
}

// init registers the run command and its flags with the root command.
func init() {
	rootCmd.AddCommand(runCmd)
	registerSharedFlags(runCmd)
}
