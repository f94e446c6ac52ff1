package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hqe/internal/config"
	"hqe/internal/ctxlog"
	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"
)

// WorkerPool manages a pool of workers for parallel test case execution
type WorkerPool struct {
	config   *config.Config
	runner   CaseRunner
	bus      *events.Bus
	progress Progress
}

var _ Executor = (*WorkerPool)(nil)

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(cfg *config.Config, runner CaseRunner, bus *events.Bus) *WorkerPool {
	return &WorkerPool{
		config: cfg,
		runner: runner,
		bus:    bus,
	}
}

// SetProgress sets the progress bar for the worker pool
func (wp *WorkerPool) SetProgress(progress Progress) {
	wp.progress = progress
}

// Execute executes test cases in parallel, stopping early when --bail is set.
func (wp *WorkerPool) Execute(ctx context.Context, cases []domain.TestCase) ([]domain.CaseResult, time.Duration, error) {
	return wp.ExecuteWithOptions(ctx, cases, wp.config.Flags.Bail)
}

// ExecuteWithOptions executes test cases with optional bail (stop starting new
// cases after the first failure). Every case gets exactly one result, in
// declaration order; cases that never started end failed.
func (wp *WorkerPool) ExecuteWithOptions(ctx context.Context, cases []domain.TestCase, bail bool) ([]domain.CaseResult, time.Duration, error) {
	startTime := time.Now()
	logger := ctxlog.FromContext(ctx)

	runCtx := ctx
	if wp.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, wp.config.RunTimeout)
		defer cancel()
	}

	info := &events.RunInfo{
		BaseURL: wp.config.BaseURL,
		Browser: wp.config.Browser,
		Driver:  wp.config.Driver,
		Total:   len(cases),
		Started: startTime,
	}
	if err := wp.bus.Emit(ctx, events.Event{Kind: events.RunStarted, Run: info}); err != nil {
		return nil, 0, errs.Wrap(errs.Configuration, "reporting could not start", err)
	}
	if len(cases) == 0 {
		wp.finishRun(ctx, info, nil)
		return nil, time.Since(startTime), nil
	}

	queue := make(chan int, len(cases))
	for i := range cases {
		queue <- i
	}
	close(queue)

	results := make([]domain.CaseResult, len(cases))
	var aborted atomic.Bool
	var mu sync.Mutex
	var passedCases, failedCases int

	workerCount := wp.config.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(cases) {
		workerCount = len(cases)
	}
	logger.Info("running test cases", "cases", len(cases), "workers", workerCount)

	var wg sync.WaitGroup
	for i := 1; i <= workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workerCtx := ctxlog.WithLogger(runCtx, logger.With("worker", workerID))
			for idx := range queue {
				var result domain.CaseResult
				switch {
				case aborted.Load():
					result = wp.skip(workerCtx, cases[idx], errs.New(errs.Aborted, "not run: an earlier test case failed and --bail is set"))
				case runCtx.Err() != nil:
					result = wp.skip(workerCtx, cases[idx], errs.FromContext(runCtx, "not run"))
				default:
					result = wp.runner.Run(workerCtx, cases[idx])
				}
				results[idx] = result
				if bail && !result.Passed() {
					aborted.Store(true)
				}

				mu.Lock()
				if result.Passed() {
					passedCases++
				} else {
					failedCases++
				}
				if wp.progress != nil {
					wp.progress.Update(passedCases, failedCases)
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wp.progress != nil {
		wp.progress.Finish()
	}
	wp.finishRun(ctx, info, results)
	return results, time.Since(startTime), nil
}

// skip produces the result of a case that was never started and reports it
// like any other case.
func (wp *WorkerPool) skip(ctx context.Context, tc domain.TestCase, reason error) domain.CaseResult {
	now := time.Now()
	result := domain.CaseResult{
		Case:   tc,
		Status: domain.StatusFailed,
		Err:    reason,
		Start:  now,
		Stop:   now,
	}
	if err := wp.bus.Emit(ctx, events.Event{Kind: events.CaseStarted, Case: &tc}); err != nil {
		ctxlog.FromContext(ctx).Warn("reporting listener failed", "event", events.CaseStarted, "error", err)
	}
	if err := wp.bus.Emit(ctx, events.Event{Kind: events.CaseFinished, Case: &tc, Result: &result}); err != nil {
		ctxlog.FromContext(ctx).Warn("reporting listener failed", "event", events.CaseFinished, "error", err)
	}
	return result
}

func (wp *WorkerPool) finishRun(ctx context.Context, info *events.RunInfo, results []domain.CaseResult) {
	for _, r := range results {
		if r.Passed() {
			info.Passed++
		} else {
			info.Failed++
		}
	}
	info.Finished = time.Now()
	if err := wp.bus.Emit(ctx, events.Event{Kind: events.RunFinished, Run: info}); err != nil {
		ctxlog.FromContext(ctx).Warn("reporting listener failed", "event", events.RunFinished, "error", err)
	}
}
