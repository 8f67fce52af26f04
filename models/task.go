package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a retailer search task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// SearchTask is one (retailer, query) acquisition scheduled on the worker pool.
// Status fields are mutated only by the scheduler that owns the task.
type SearchTask struct {
	ID          string          `json:"id"`
	Retailer    string          `json:"retailer"`
	Query       string          `json:"query"`
	Status      TaskStatus      `json:"status"`
	Attempts    int             `json:"attempts"`
	Records     []ProductRecord `json:"records,omitempty"`
	Failure     *SearchFailure  `json:"failure,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewSearchTask creates a queued search task
func NewSearchTask(retailer, query string) *SearchTask {
	return &SearchTask{
		ID:        uuid.NewString(),
		Retailer:  retailer,
		Query:     query,
		Status:    TaskStatusQueued,
		CreatedAt: time.Now(),
	}
}

// Start marks the task as processing
func (t *SearchTask) Start() {
	t.Status = TaskStatusProcessing
	t.Attempts++
	now := time.Now()
	t.StartedAt = &now
	t.CompletedAt = nil
}

// Complete marks the task as completed with its ranked records
func (t *SearchTask) Complete(records []ProductRecord) {
	t.Status = TaskStatusCompleted
	t.Records = records
	t.Failure = nil
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed
func (t *SearchTask) Fail(failure SearchFailure) {
	t.Status = TaskStatusFailed
	t.Records = nil
	t.Failure = &failure
	now := time.Now()
	t.CompletedAt = &now
}

// Requeue puts a failed task back in the queue for another attempt
func (t *SearchTask) Requeue() {
	t.Status = TaskStatusQueued
	t.Failure = nil
}

// IsCompleted returns true if the task is in a final state
func (t *SearchTask) IsCompleted() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still running
func (t *SearchTask) IsActive() bool {
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

// ShouldRetry returns true if the task failed with a transient failure kind
func (t *SearchTask) ShouldRetry() bool {
	return t.Status == TaskStatusFailed && t.Failure != nil && t.Failure.Kind.Retryable()
}

// Duration returns the duration of the last attempt
func (t *SearchTask) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}

	endTime := time.Now()
	if t.CompletedAt != nil {
		endTime = *t.CompletedAt
	}

	return endTime.Sub(*t.StartedAt)
}
