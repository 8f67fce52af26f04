package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"smartcart/config"
	"smartcart/database"
	"smartcart/pricing"
	"smartcart/report"
	"smartcart/repository"
	"smartcart/scraper"
	"smartcart/services"

	"go.uber.org/zap"
)

// app holds everything a command needs for one invocation
type app struct {
	browser    *scraper.RodBrowser
	db         *sql.DB
	printer    *report.TablePrinter
	comparator *services.Comparator
	logger     *zap.Logger
}

type appOptions struct {
	save bool // write JSON files and database rows
	out  io.Writer
}

func pollOptions(c *config.Config) scraper.PollOptions {
	options := scraper.DefaultPollOptions()
	options.MaxAttempts = c.Polling.MaxAttempts
	options.Blocked = scraper.DelayRange{Min: c.Polling.BlockedMin, Max: c.Polling.BlockedMax}
	options.Idle = scraper.DelayRange{Min: c.Polling.IdleMin, Max: c.Polling.IdleMax}
	return options
}

func browserOptions(c *config.Config) scraper.BrowserOptions {
	options := scraper.DefaultBrowserOptions()
	options.Headless = c.Browser.Headless
	options.Bin = c.Browser.Bin
	if c.Browser.NavigateTimeout > 0 {
		options.NavigateTimeout = c.Browser.NavigateTimeout
	}
	return options
}

func comparatorOptions(c *config.Config) services.Options {
	return services.Options{
		Workers:       c.Workers,
		RetryAttempts: c.Retry.Attempts,
		RetryDelay:    c.Retry.Delay,
		ProductDelay:  c.ProductDelay,
	}
}

func newApp(ctx context.Context, c *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	location := scraper.Location{PostalCode: c.Location.PostalCode, StoreID: c.Location.StoreID}
	profiles, err := scraper.SelectRetailers(scraper.DefaultRetailers(location), c.Retailers)
	if err != nil {
		return nil, err
	}

	out := opts.out
	if out == nil {
		out = os.Stdout
	}
	a := &app{
		printer: report.NewTablePrinter(out, report.DefaultTopN),
		logger:  logger,
	}
	sinks := []services.ResultSink{a.printer}

	if opts.save {
		sinks = append(sinks, report.NewJSONFileSink(c.OutputDir, logger))

		if c.DatabaseURL != "" {
			a.db, err = database.Open(ctx, c.DatabaseURL)
			if err != nil {
				return nil, err
			}
			if err := database.CreateTables(ctx, a.db); err != nil {
				a.Close()
				return nil, err
			}
			sinks = append(sinks, repository.NewResultRepository(a.db))
			logger.Info("Saving results to database")
		}
	}

	a.browser, err = scraper.NewRodBrowser(browserOptions(c), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	acquirer := scraper.NewAcquirer(
		a.browser,
		repository.NewFileSessionStore(c.SessionDir),
		scraper.NewPoliteness(c.Politeness.MinInterval, c.Politeness.MaxJitter),
		pollOptions(c),
		logger,
	)
	ranker := pricing.NewRanker(c.ResultLimit, pricing.NewNormalizer())
	a.comparator = services.NewComparator(acquirer, profiles, ranker, comparatorOptions(c), logger, sinks...)

	return a, nil
}

// Close releases the browser and database
func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.logger.Warn("Failed to close browser", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

func openResults(ctx context.Context, c *config.Config) (*repository.ResultRepository, func(), error) {
	if c.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("database url is not configured (set SMARTCART_DATABASE_URL)")
	}
	db, err := database.Open(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewResultRepository(db), func() { db.Close() }, nil
}
