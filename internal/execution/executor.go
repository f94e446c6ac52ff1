package execution

import (
	"context"
	"time"

	"hqe/internal/domain"
)

// Executor executes test cases and returns their results in declaration order
type Executor interface {
	Execute(ctx context.Context, cases []domain.TestCase) ([]domain.CaseResult, time.Duration, error)
}

// CaseRunner executes a single test case
type CaseRunner interface {
	Run(ctx context.Context, tc domain.TestCase) domain.CaseResult
}

// Progress receives counts as test cases finish
type Progress interface {
	Update(passed, failed int)
	Finish()
}
