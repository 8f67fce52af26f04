package commands

import (
	"errors"
	"fmt"

	"smartcart/models"
	"smartcart/pricing"
	"smartcart/scraper"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <retailer> <query...>",
	Short: "Searches a single retailer and prints the ranked listings.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		retailer := args[0]
		query := joinQuery(args[1:])
		if query == "" {
			return fmt.Errorf("%w: query is empty", errUsage)
		}

		a, err := newApp(cmd.Context(), cfg, log, appOptions{out: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		defer a.Close()

		run := models.NewComparisonRun([]string{query})
		records, err := a.comparator.SearchOneRetailer(cmd.Context(), retailer, query)
		var failures []models.SearchFailure
		var acqErr *scraper.AcquisitionError
		switch {
		case errors.As(err, &acqErr):
			failures = append(failures, acqErr.Failure())
		case err != nil:
			return err
		}

		results := models.QueryResultSet{retailer: records}
		run.Record(query, results, pricing.CompareAcrossRetailers(query, results), failures)
		run.Finish()
		a.printer.Print(run)
		return nil
	},
}
