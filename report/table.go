package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"smartcart/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultTopN is how many records per retailer the table shows
const DefaultTopN = 5

// TablePrinter renders a comparison run as one table per product query
type TablePrinter struct {
	out  io.Writer
	topN int
}

// NewTablePrinter creates a printer writing to out, or stdout when out is nil
func NewTablePrinter(out io.Writer, topN int) *TablePrinter {
	if out == nil {
		out = os.Stdout
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &TablePrinter{out: out, topN: topN}
}

// Save prints the run, so the printer can be used as a result sink
func (tp *TablePrinter) Save(ctx context.Context, run *models.ComparisonRun) error {
	tp.Print(run)
	return nil
}

// Print writes the report for every query of the run
func (tp *TablePrinter) Print(run *models.ComparisonRun) {
	finished := run.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	fmt.Fprintf(tp.out, "\nCOMPARISON RESULTS - %s\n", finished.Format("2006-01-02 15:04:05"))

	for _, query := range run.Queries {
		results, ok := run.Results[query]
		if !ok {
			continue
		}
		tp.printQuery(query, results, run.BestDeals[query])
	}

	if len(run.Failures) > 0 {
		fmt.Fprintln(tp.out, "\nFailed searches:")
		for _, f := range run.Failures {
			fmt.Fprintf(tp.out, "  - %s\n", f)
		}
	}
}

func (tp *TablePrinter) printQuery(query string, results models.QueryResultSet, best *models.ComparisonOutcome) {
	t := table.NewWriter()
	t.SetOutputMirror(tp.out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("PRODUCT: %s", strings.ToUpper(query))
	t.AppendHeader(table.Row{"Retailer", "#", "Name", "Price", "Unit price", "Qty", "Available"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 48},
		{Number: 4, Align: text.AlignRight},
	})

	for _, retailer := range results.Retailers() {
		records := results[retailer]
		if len(records) == 0 {
			t.AppendRow(table.Row{strings.ToUpper(retailer), "", "(no items found)", "", "", "", ""})
			t.AppendSeparator()
			continue
		}
		for i, rec := range records {
			if i >= tp.topN {
				break
			}
			t.AppendRow(table.Row{
				strings.ToUpper(retailer),
				i + 1,
				rec.Name,
				formatPrice(rec),
				orNA(rec.DisplayString),
				orNA(rec.QuantityText),
				formatAvailable(rec.Available),
			})
		}
		t.AppendSeparator()
	}

	line := bestDealLine(best)
	t.AppendFooter(table.Row{line, line, line, line, line, line, line}, table.RowConfig{AutoMerge: true})
	t.Render()
}

func bestDealLine(best *models.ComparisonOutcome) string {
	if best == nil {
		return "BEST DEAL: no items with valid prices found"
	}
	basis := "by total price"
	if best.Basis == models.BasisUnitPrice {
		basis = "by unit price"
	}
	line := fmt.Sprintf("BEST DEAL (%s): %s - %q %s", basis, strings.ToUpper(best.Retailer), best.Record.Name, formatPrice(best.Record))
	if best.Record.DisplayString != "" {
		line += " (" + best.Record.DisplayString + ")"
	}
	return line
}

func formatPrice(rec models.ProductRecord) string {
	if !rec.HasPrice() {
		return "N/A"
	}
	return "$" + rec.GetPrice().StringFixed(2)
}

func formatAvailable(available bool) string {
	if available {
		return "yes"
	}
	return "no"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
