package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hqe/internal/domain"
)

// Save writes the run summary and the failure details to the summary file.
func (s *JSONStorage) Save(results []domain.CaseResult, duration time.Duration, workers int) error {
	passed := 0
	failed := 0
	files := make(map[string]bool)
	failures := make([]domain.TestFailure, 0)
	for _, r := range results {
		files[r.Case.File] = true
		if r.Passed() {
			passed++
		} else {
			failed++
			failures = append(failures, domain.NewTestFailure(r))
		}
	}

	output := domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			TotalTestCases:  len(results),
			PassedTestCases: passed,
			FailedTestCases: failed,
			SpecFiles:       len(files),
			BaseURL:         s.cfg.BaseURL,
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Workers:         workers,
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Details: failures,
	}
	return s.SaveOutput(&output)
}

// Load reads the last run summary.
func (s *JSONStorage) Load() (*domain.TestResultsOutput, error) {
	path := s.cfg.GetSummaryPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var output domain.TestResultsOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	return &output, nil
}

// SaveOutput writes the full output to the summary file.
func (s *JSONStorage) SaveOutput(output *domain.TestResultsOutput) error {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	path := s.cfg.GetSummaryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
