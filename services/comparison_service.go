package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartcart/models"
	"smartcart/pricing"
	"smartcart/scheduler"
	"smartcart/scraper"

	"go.uber.org/zap"
)

// ResultSink receives every finished comparison run
type ResultSink interface {
	Save(ctx context.Context, run *models.ComparisonRun) error
}

// Options tunes how a comparison fans out across retailers
type Options struct {
	Workers       int
	RetryAttempts int
	RetryDelay    time.Duration
	ProductDelay  time.Duration // Pause between consecutive product queries
}

// DefaultOptions returns default comparison options
func DefaultOptions() Options {
	return Options{
		Workers:       3,
		RetryAttempts: 2,
		RetryDelay:    time.Minute,
		ProductDelay:  2 * time.Second,
	}
}

// Comparator searches every configured retailer for each product query and
// picks the cheapest option
type Comparator struct {
	acquirer *scraper.Acquirer
	profiles []*scraper.RetailerProfile
	byName   map[string]*scraper.RetailerProfile
	ranker   *pricing.Ranker
	tasks    *scheduler.TaskManager
	retry    *scheduler.RetryService
	sinks    []ResultSink
	options  Options
	sleep    scheduler.Sleeper
	logger   *zap.Logger
}

// NewComparator creates a comparator over the given retailer profiles
func NewComparator(acquirer *scraper.Acquirer, profiles []*scraper.RetailerProfile, ranker *pricing.Ranker, options Options, logger *zap.Logger, sinks ...ResultSink) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Comparator{
		acquirer: acquirer,
		profiles: profiles,
		byName:   make(map[string]*scraper.RetailerProfile, len(profiles)),
		ranker:   ranker,
		sinks:    sinks,
		options:  options,
		sleep:    scraper.SleepContext,
		logger:   logger,
	}
	for _, p := range profiles {
		c.byName[p.Name] = p
	}
	c.tasks = scheduler.NewTaskManager(c.searchTask, options.Workers, logger)
	c.retry = scheduler.NewRetryService(c.tasks, options.RetryAttempts, options.RetryDelay, logger)
	return c
}

// WithSleeper replaces every wait the comparator makes between searches
func (c *Comparator) WithSleeper(sleep scheduler.Sleeper) *Comparator {
	c.sleep = sleep
	c.retry.WithSleeper(sleep)
	return c
}

// Retailers returns the configured retailer names in order
func (c *Comparator) Retailers() []string {
	names := make([]string, 0, len(c.profiles))
	for _, p := range c.profiles {
		names = append(names, p.Name)
	}
	return names
}

// Stats exposes the worker pool statistics
func (c *Comparator) Stats() scheduler.Stats {
	return c.tasks.GetStats()
}

// SearchOneRetailer acquires one retailer's results for a query and returns
// the relevant records, ranked and enriched. Acquisition failures are
// returned as *scraper.AcquisitionError alongside an empty list.
func (c *Comparator) SearchOneRetailer(ctx context.Context, retailer, query string) ([]models.ProductRecord, error) {
	retailer = strings.ToLower(strings.TrimSpace(retailer))
	profile, ok := c.byName[retailer]
	if !ok {
		return nil, fmt.Errorf("unknown retailer %q", retailer)
	}

	result := c.acquirer.Acquire(ctx, profile, query)
	if result.Err != nil {
		return []models.ProductRecord{}, result.Err
	}

	ranked := c.ranker.FilterAndRank(query, result.Records)
	c.logger.Info("Retailer search finished",
		zap.String("retailer", retailer),
		zap.String("query", query),
		zap.Int("found", len(result.Records)),
		zap.Int("kept", len(ranked)),
	)
	return ranked, nil
}

func (c *Comparator) searchTask(ctx context.Context, task *models.SearchTask) ([]models.ProductRecord, *models.SearchFailure) {
	records, err := c.SearchOneRetailer(ctx, task.Retailer, task.Query)
	if err == nil {
		return records, nil
	}

	var acqErr *scraper.AcquisitionError
	if errors.As(err, &acqErr) {
		failure := acqErr.Failure()
		return nil, &failure
	}
	return nil, &models.SearchFailure{
		Retailer: task.Retailer,
		Query:    task.Query,
		Kind:     models.FailureTransport,
		Message:  err.Error(),
	}
}

// CompareProduct searches all retailers concurrently for one query and
// returns the per-retailer results, the cheapest option (nil when nothing
// was priced) and the failed searches. A failed retailer contributes an
// empty list.
func (c *Comparator) CompareProduct(ctx context.Context, query string) (models.QueryResultSet, *models.ComparisonOutcome, []models.SearchFailure) {
	tasks := make([]*models.SearchTask, 0, len(c.profiles))
	for _, p := range c.profiles {
		tasks = append(tasks, models.NewSearchTask(p.Name, query))
	}

	c.retry.Run(ctx, tasks)

	results := make(models.QueryResultSet, len(tasks))
	var failures []models.SearchFailure
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
		snapshot, _ := c.tasks.GetTask(task.ID)
		if snapshot.Failure != nil {
			failures = append(failures, *snapshot.Failure)
		}
		records := snapshot.Records
		if records == nil {
			records = []models.ProductRecord{}
		}
		results[snapshot.Retailer] = records
	}
	c.tasks.ReleaseTasks(ids...)

	best := pricing.CompareAcrossRetailers(query, results)
	if best != nil {
		c.logger.Info("Best deal",
			zap.String("query", query),
			zap.String("retailer", best.Retailer),
			zap.String("name", best.Record.Name),
			zap.String("basis", string(best.Basis)),
		)
	} else {
		c.logger.Info("No priced items for query", zap.String("query", query))
	}
	return results, best, failures
}

// Run compares each query in turn and hands the finished run to every sink.
// A cancelled context stops the run after the current query; the partial
// run is returned with the context error and is not sent to the sinks.
func (c *Comparator) Run(ctx context.Context, queries []string) (*models.ComparisonRun, error) {
	run := models.NewComparisonRun(queries)
	log := c.logger.With(zap.String("run_id", run.ID))
	log.Info("Comparison started", zap.Strings("queries", run.Queries), zap.Strings("retailers", c.Retailers()))

	for i, query := range run.Queries {
		if i > 0 && c.options.ProductDelay > 0 {
			if err := c.sleep(ctx, c.options.ProductDelay); err != nil {
				run.Finish()
				return run, err
			}
		}
		if err := ctx.Err(); err != nil {
			run.Finish()
			return run, err
		}

		results, best, failures := c.CompareProduct(ctx, query)
		run.Record(query, results, best, failures)
	}
	run.Finish()

	if err := ctx.Err(); err != nil {
		return run, err
	}

	log.Info("Comparison finished",
		zap.Duration("duration", run.Duration()),
		zap.Int("failures", len(run.Failures)),
	)

	var errs []error
	for _, sink := range c.sinks {
		if err := sink.Save(ctx, run); err != nil {
			log.Error("Failed to save comparison run", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return run, errors.Join(errs...)
}
