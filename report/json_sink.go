package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smartcart/models"

	"go.uber.org/zap"
)

// JSONFileSink writes each run to a timestamped JSON file
type JSONFileSink struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// NewJSONFileSink creates a sink writing into dir, created on first use
func NewJSONFileSink(dir string, logger *zap.Logger) *JSONFileSink {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONFileSink{dir: dir, now: time.Now, logger: logger}
}

// FileName returns the output file name for a save at t
func FileName(t time.Time) string {
	return fmt.Sprintf("comparison_results_%s.json", t.Format("20060102_150405"))
}

// Save writes the run and returns once the file is complete on disk
func (s *JSONFileSink) Save(ctx context.Context, run *models.ComparisonRun) error {
	_, err := s.Write(run)
	return err
}

// Write writes the run and returns the file path
func (s *JSONFileSink) Write(run *models.ComparisonRun) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode comparison run: %w", err)
	}

	path := filepath.Join(s.dir, FileName(s.now()))
	tmp, err := os.CreateTemp(s.dir, ".comparison_results_*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}

	s.logger.Info("Results saved", zap.String("path", path), zap.String("run_id", run.ID))
	return path, nil
}
