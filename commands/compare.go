package commands

import (
	"errors"
	"fmt"
	"strings"

	"smartcart/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var compareNoSave bool

func init() {
	compareCmd.Flags().BoolVar(&compareNoSave, "no-save", false, "Print results without writing the JSON file or database rows.")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare [product...]",
	Short: "Searches every retailer for each product and reports the best deal.",
	Long: `Searches every configured retailer for each product, keeps the relevant
listings, normalizes unit prices and reports the cheapest option per product.
Products default to the configured list. A retailer that shows a bot challenge
keeps its browser window open so the challenge can be completed by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		products := cfg.Products
		if len(args) > 0 {
			products = args
		}

		a, err := newApp(cmd.Context(), cfg, log, appOptions{save: !compareNoSave, out: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		defer a.Close()

		log.Info("Starting comparison",
			zap.Strings("products", products),
			zap.Strings("retailers", a.comparator.Retailers()),
		)
		run, err := a.comparator.Run(cmd.Context(), products)
		if err != nil {
			if cmd.Context().Err() != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Comparison interrupted.")
				return nil
			}
			return err
		}
		logFailures(run)
		return nil
	},
}

func logFailures(run *models.ComparisonRun) {
	for _, f := range run.Failures {
		if f.Kind == models.FailureBlocked {
			log.Warn("Retailer kept blocking the browser", zap.String("retailer", f.Retailer), zap.String("query", f.Query))
		}
	}
}

// errUsage marks argument errors
var errUsage = errors.New("invalid arguments")

func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
