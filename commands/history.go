package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of past runs to show.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <query...>",
	Short: "Prints past best deals for a product from the database.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openResults(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		entries, err := repo.GetBestDealHistory(cmd.Context(), joinQuery(args), historyLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Recorded", "Retailer", "Name", "Price", "Unit price", "Basis"})
		for _, e := range entries {
			price := "N/A"
			if e.Price.Valid {
				price = "$" + e.Price.Decimal.StringFixed(2)
			}
			t.AppendRow(table.Row{e.RecordedAt.Local().Format("2006-01-02 15:04"), e.Retailer, e.Name, price, e.Display, string(e.Basis)})
		}
		t.Render()
		return nil
	},
}
