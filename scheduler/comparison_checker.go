package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs a comparison at 00:00 and 12:00
const DefaultSchedule = "0 0 */12 * * *"

// RunFunc performs one full comparison run
type RunFunc func(ctx context.Context) error

// ComparisonChecker re-runs the comparison on a cron schedule. A tick that
// fires while the previous run is still going is skipped.
type ComparisonChecker struct {
	cron     *cron.Cron
	schedule string
	run      RunFunc
	running  sync.Mutex
	inflight sync.WaitGroup
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewComparisonChecker creates a checker for a six-field (seconds first) cron spec
func NewComparisonChecker(schedule string, run RunFunc, logger *zap.Logger) *ComparisonChecker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComparisonChecker{
		cron:     cron.New(cron.WithSeconds()),
		schedule: schedule,
		run:      run,
		logger:   logger,
	}
}

// Start schedules the comparison and, when runNow is set, starts one run immediately
func (cc *ComparisonChecker) Start(ctx context.Context, runNow bool) error {
	cc.ctx, cc.cancel = context.WithCancel(ctx)

	if _, err := cc.cron.AddFunc(cc.schedule, cc.check); err != nil {
		cc.cancel()
		return fmt.Errorf("failed to schedule comparison %q: %w", cc.schedule, err)
	}

	if runNow {
		cc.inflight.Add(1)
		go func() {
			defer cc.inflight.Done()
			cc.check()
		}()
	}

	cc.cron.Start()
	cc.logger.Info("Comparison scheduled", zap.String("schedule", cc.schedule))
	return nil
}

// Stop cancels any in-flight run and waits for it to return
func (cc *ComparisonChecker) Stop() {
	if cc.cancel != nil {
		cc.cancel()
	}
	<-cc.cron.Stop().Done()
	cc.inflight.Wait()
}

// ManualCheck runs a comparison now unless one is already running. It
// reports whether the run happened.
func (cc *ComparisonChecker) ManualCheck(ctx context.Context) (bool, error) {
	if !cc.running.TryLock() {
		cc.logger.Info("Comparison already running, manual check skipped")
		return false, nil
	}
	defer cc.running.Unlock()

	cc.logger.Info("Manual comparison triggered")
	return true, cc.run(ctx)
}

func (cc *ComparisonChecker) check() {
	if !cc.running.TryLock() {
		cc.logger.Warn("Previous comparison still running, skipping this tick")
		return
	}
	defer cc.running.Unlock()

	cc.logger.Info("Starting scheduled comparison")
	if err := cc.run(cc.ctx); err != nil {
		cc.logger.Error("Scheduled comparison failed", zap.Error(err))
		return
	}
	cc.logger.Info("Scheduled comparison finished")
}
