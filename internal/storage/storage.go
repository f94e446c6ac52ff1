package storage

import (
	"time"

	"hqe/internal/config"
	"hqe/internal/domain"
)

// Storage persists and loads the last run summary (e.g. for the failures viewer).
type Storage interface {
	Save(results []domain.CaseResult, duration time.Duration, workers int) error
	Load() (*domain.TestResultsOutput, error)
	// SaveOutput writes the full output (e.g. after marking failures resolved).
	SaveOutput(output *domain.TestResultsOutput) error
}

// JSONStorage stores the summary in a JSON file under the configured summary path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's summary JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
