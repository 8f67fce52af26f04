package scheduler

import (
	"context"
	"time"

	"smartcart/models"

	"go.uber.org/zap"
)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryService re-runs tasks that failed with a retryable kind, up to a fixed
// number of attempts with a doubling delay between rounds.
type RetryService struct {
	tasks       *TaskManager
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       Sleeper
	logger      *zap.Logger
}

// NewRetryService creates a retry service. maxAttempts counts the first run.
func NewRetryService(tasks *TaskManager, maxAttempts int, baseDelay time.Duration, logger *zap.Logger) *RetryService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryService{
		tasks:       tasks,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    10 * time.Minute,
		sleep:       sleepContext,
		logger:      logger,
	}
}

// WithSleeper replaces the wait between rounds
func (rs *RetryService) WithSleeper(sleep Sleeper) *RetryService {
	rs.sleep = sleep
	return rs
}

// NextRetryDelay returns the wait before the given retry round (1-based)
func (rs *RetryService) NextRetryDelay(round int) time.Duration {
	delay := rs.baseDelay
	for i := 1; i < round; i++ {
		delay *= 2
		if delay >= rs.maxDelay {
			return rs.maxDelay
		}
	}
	return delay
}

// Run executes the tasks and retries retryable failures until they succeed,
// fail permanently or run out of attempts.
func (rs *RetryService) Run(ctx context.Context, tasks []*models.SearchTask) {
	rs.tasks.RunAll(ctx, tasks)

	for round := 1; ; round++ {
		pending := rs.retryable(tasks)
		if len(pending) == 0 {
			return
		}

		delay := rs.NextRetryDelay(round)
		rs.logger.Info("Retrying failed searches",
			zap.Int("tasks", len(pending)),
			zap.Int("round", round),
			zap.Duration("delay", delay),
		)
		if err := rs.sleep(ctx, delay); err != nil {
			rs.logger.Warn("Retry cancelled", zap.Error(err))
			return
		}

		for _, task := range pending {
			rs.tasks.mutex.Lock()
			task.Requeue()
			rs.tasks.mutex.Unlock()
		}
		rs.tasks.RunAll(ctx, pending)
	}
}

func (rs *RetryService) retryable(tasks []*models.SearchTask) []*models.SearchTask {
	rs.tasks.mutex.RLock()
	defer rs.tasks.mutex.RUnlock()

	var pending []*models.SearchTask
	for _, task := range tasks {
		if task.ShouldRetry() && task.Attempts < rs.maxAttempts {
			pending = append(pending, task)
		}
	}
	return pending
}
