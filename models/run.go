package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FailureKind classifies why an acquisition did not produce records
type FailureKind string

const (
	FailureNotFound  FailureKind = "not_found"
	FailureBlocked   FailureKind = "blocked"
	FailureParse     FailureKind = "parse_failure"
	FailureTransport FailureKind = "transport_failure"
)

// Retryable reports whether another attempt could plausibly succeed
func (k FailureKind) Retryable() bool {
	return k == FailureBlocked || k == FailureTransport
}

// SearchFailure records one (retailer, query) pair that produced no records
type SearchFailure struct {
	Retailer string      `json:"retailer"`
	Query    string      `json:"query"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
}

func (f SearchFailure) String() string {
	return fmt.Sprintf("%s %q: %s (%s)", f.Retailer, f.Query, f.Kind, f.Message)
}

// ComparisonRun is the outcome of comparing a list of product queries across retailers
type ComparisonRun struct {
	ID         string                        `json:"id"`
	StartedAt  time.Time                     `json:"started_at"`
	FinishedAt time.Time                     `json:"finished_at"`
	Queries    []string                      `json:"queries"`
	Results    map[string]QueryResultSet     `json:"results"`
	BestDeals  map[string]*ComparisonOutcome `json:"best_deals"`
	Failures   []SearchFailure               `json:"failures,omitempty"`
}

// NewComparisonRun creates an empty run for the given queries. Queries are
// trimmed and repeats dropped, keeping first-seen order.
func NewComparisonRun(queries []string) *ComparisonRun {
	return &ComparisonRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Queries:   uniqueQueries(queries),
		Results:   make(map[string]QueryResultSet),
		BestDeals: make(map[string]*ComparisonOutcome),
	}
}

func uniqueQueries(queries []string) []string {
	seen := make(map[string]bool, len(queries))
	unique := make([]string, 0, len(queries))
	for _, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" || seen[query] {
			continue
		}
		seen[query] = true
		unique = append(unique, query)
	}
	return unique
}

// Record stores the per-retailer results and winner for one query
func (r *ComparisonRun) Record(query string, results QueryResultSet, best *ComparisonOutcome, failures []SearchFailure) {
	r.Results[query] = results
	r.BestDeals[query] = best
	r.Failures = append(r.Failures, failures...)
}

// Finish stamps the completion time
func (r *ComparisonRun) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns how long the run took
func (r *ComparisonRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
