package commands

import (
	"context"

	"smartcart/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchSkipFirst bool

func init() {
	watchCmd.Flags().BoolVar(&watchSkipFirst, "skip-first", false, "Wait for the first scheduled tick instead of comparing immediately.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-runs the comparison of the configured products on a cron schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log, appOptions{save: true, out: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		defer a.Close()

		checker := scheduler.NewComparisonChecker(cfg.Schedule, func(ctx context.Context) error {
			run, err := a.comparator.Run(ctx, cfg.Products)
			if err != nil {
				return err
			}
			logFailures(run)
			return nil
		}, log)

		if err := checker.Start(cmd.Context(), !watchSkipFirst); err != nil {
			return err
		}
		log.Info("Watching prices, press Ctrl+C to stop", zap.String("schedule", cfg.Schedule))

		<-cmd.Context().Done()
		log.Info("Stopping watch")
		checker.Stop()
		return nil
	},
}
