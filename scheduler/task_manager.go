package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartcart/models"

	"go.uber.org/zap"
)

// SearchFunc performs one retailer search. A nil failure means success.
type SearchFunc func(ctx context.Context, task *models.SearchTask) ([]models.ProductRecord, *models.SearchFailure)

// TaskManager runs search tasks on a bounded pool of workers
type TaskManager struct {
	tasks      map[string]*models.SearchTask
	maxWorkers int
	workers    int
	searchFunc SearchFunc
	mutex      sync.RWMutex
	logger     *zap.Logger
}

// NewTaskManager creates a new task manager
func NewTaskManager(searchFunc SearchFunc, maxWorkers int, logger *zap.Logger) *TaskManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskManager{
		tasks:      make(map[string]*models.SearchTask),
		maxWorkers: maxWorkers,
		searchFunc: searchFunc,
		logger:     logger,
	}
}

// Submit registers a task so it can be looked up while it runs
func (tm *TaskManager) Submit(task *models.SearchTask) {
	tm.mutex.Lock()
	tm.tasks[task.ID] = task
	tm.mutex.Unlock()
}

// RunAll runs the tasks concurrently, at most maxWorkers at a time, and
// blocks until every task has reached a final state.
func (tm *TaskManager) RunAll(ctx context.Context, tasks []*models.SearchTask) {
	slots := make(chan struct{}, tm.maxWorkers)
	var wg sync.WaitGroup

	for _, task := range tasks {
		tm.Submit(task)

		wg.Add(1)
		go func(task *models.SearchTask) {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				tm.finish(task, nil, &models.SearchFailure{
					Retailer: task.Retailer,
					Query:    task.Query,
					Kind:     models.FailureTransport,
					Message:  fmt.Sprintf("cancelled before start: %v", ctx.Err()),
				})
				return
			}
			defer func() { <-slots }()

			tm.worker(ctx, task)
		}(task)
	}

	wg.Wait()
}

// worker processes a single task
func (tm *TaskManager) worker(ctx context.Context, task *models.SearchTask) {
	tm.mutex.Lock()
	task.Start()
	tm.workers++
	active := tm.workers
	tm.mutex.Unlock()

	log := tm.logger.With(
		zap.String("task_id", task.ID),
		zap.String("retailer", task.Retailer),
		zap.String("query", task.Query),
	)
	log.Debug("Worker started", zap.Int("active_workers", active), zap.Int("attempt", task.Attempts))

	var (
		records []models.ProductRecord
		failure *models.SearchFailure
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Search panicked", zap.Any("panic", r))
			records = nil
			failure = &models.SearchFailure{
				Retailer: task.Retailer,
				Query:    task.Query,
				Kind:     models.FailureTransport,
				Message:  fmt.Sprintf("panic: %v", r),
			}
		}
		tm.finish(task, records, failure)

		tm.mutex.Lock()
		tm.workers--
		tm.mutex.Unlock()

		if failure != nil {
			log.Info("Task failed", zap.String("kind", string(failure.Kind)), zap.Duration("duration", tm.duration(task)))
		} else {
			log.Info("Task completed", zap.Int("records", len(records)), zap.Duration("duration", tm.duration(task)))
		}
	}()

	records, failure = tm.searchFunc(ctx, task)
}

func (tm *TaskManager) finish(task *models.SearchTask, records []models.ProductRecord, failure *models.SearchFailure) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if failure != nil {
		task.Fail(*failure)
		return
	}
	task.Complete(records)
}

func (tm *TaskManager) duration(task *models.SearchTask) time.Duration {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return task.Duration()
}

// GetTask returns a snapshot of a task by ID
func (tm *TaskManager) GetTask(taskID string) (models.SearchTask, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	task, exists := tm.tasks[taskID]
	if !exists {
		return models.SearchTask{}, false
	}
	return *task, true
}

// GetActiveTasks returns snapshots of all queued or running tasks
func (tm *TaskManager) GetActiveTasks() []models.SearchTask {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	var activeTasks []models.SearchTask
	for _, task := range tm.tasks {
		if task.IsActive() {
			activeTasks = append(activeTasks, *task)
		}
	}

	return activeTasks
}

// ReleaseTasks forgets finished tasks once their results have been read.
// Tasks still queued or processing are kept.
func (tm *TaskManager) ReleaseTasks(taskIDs ...string) int {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	removed := 0
	for _, taskID := range taskIDs {
		task, ok := tm.tasks[taskID]
		if !ok || !task.IsCompleted() {
			continue
		}
		delete(tm.tasks, taskID)
		removed++
	}
	if removed > 0 {
		tm.logger.Debug("Released finished tasks", zap.Int("removed", removed))
	}
	return removed
}

// Stats is a point-in-time view of the task manager
type Stats struct {
	TotalTasks    int                       `json:"total_tasks"`
	ActiveWorkers int                       `json:"active_workers"`
	MaxWorkers    int                       `json:"max_workers"`
	TasksByStatus map[models.TaskStatus]int `json:"tasks_by_status"`
}

// GetStats returns task manager statistics
func (tm *TaskManager) GetStats() Stats {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := Stats{
		TotalTasks:    len(tm.tasks),
		ActiveWorkers: tm.workers,
		MaxWorkers:    tm.maxWorkers,
		TasksByStatus: make(map[models.TaskStatus]int),
	}
	for _, task := range tm.tasks {
		stats.TasksByStatus[task.Status]++
	}

	return stats
}
