package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/config"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete content no site points at",
	Long: `Delete blobs in the content store that no registered site points at.

Such blobs are left behind when a publish fails after writing content or
when content could not be deleted with its site. Blobs younger than the
grace period are kept, since they may belong to a publish in flight.

serve runs the same sweep on service.sweep_schedule.

Examples:
  # Show what would be deleted
  sitehost sweep --dry-run

  # Sweep with a shorter grace period
  sitehost sweep --grace 10m`,
	RunE: runSweep,
}

var (
	sweepDryRun bool
	sweepGrace  time.Duration
	sweepOutput string
)

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "report orphaned blobs without deleting them")
	sweepCmd.Flags().DurationVar(&sweepGrace, "grace", 0, "keep blobs modified within this window (default: service.sweep_grace_period)")
	sweepCmd.Flags().StringVarP(&sweepOutput, "output", "o", outputText, "output format: text, json, yaml")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	formatter, err := newFormatter(sweepOutput)
	if err != nil {
		return err
	}

	grace := cfg.Service.SweepGracePeriod
	if cmd.Flags().Changed("grace") {
		grace = sweepGrace
	}

	db, err := openDatabase(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	service, err := newSiteService(cfg, db, store, nil)
	if err != nil {
		return err
	}

	result, err := service.Sweep(ctx, sitehost.SweepOptions{GracePeriod: grace, DryRun: sweepDryRun})
	if err != nil {
		return err
	}

	return formatter.FormatSweep(cmd.OutOrStdout(), result, sweepDryRun)
}
