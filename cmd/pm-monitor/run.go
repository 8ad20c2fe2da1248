package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/i474232898/pm-monitor/internal/monitor"
)

// successMarker is printed once a run completes, even if some uploads failed.
const successMarker = "All files uploaded."

var runLocalOnly bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring cycle and publish the results",
	Long: `Computes the current snapshot and both annual aggregates, appends the
snapshot to the history ledger, writes the four JSON documents to OUT_DIR and
uploads them to the configured repository.

Per-document upload failures are logged and do not fail the command.`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runLocalOnly, "local-only", false, "write documents locally without uploading them")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, runLocalOnly)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	report, err := a.service.Run(runCtx)
	if err != nil {
		return err
	}

	for _, o := range report.Outcomes {
		if o.Action == monitor.ActionFailed {
			cmd.PrintErrf("failed to publish %s: %s\n", o.Path, o.Error)
		}
	}
	cmd.Println(successMarker)
	return nil
}
