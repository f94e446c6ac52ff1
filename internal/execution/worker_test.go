package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hqe/internal/browser/browsertest"
	"hqe/internal/config"
	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner fails the cases named in fail and counts calls.
type stubRunner struct {
	fail  map[string]bool
	delay time.Duration
	calls atomic.Int32
}

func (s *stubRunner) Run(ctx context.Context, tc domain.TestCase) domain.CaseResult {
	s.calls.Add(1)
	result := domain.CaseResult{Case: tc, Start: time.Now(), Status: domain.StatusPassed}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			result.Status = domain.StatusFailed
			result.Err = errs.FromContext(ctx, "interrupted")
		case <-time.After(s.delay):
		}
	}
	if result.Err == nil && s.fail[tc.Name] {
		result.Status = domain.StatusFailed
		result.Err = errs.NewAssertion("title", "Hora do QA", "", nil)
	}
	result.Stop = time.Now()
	return result
}

type countingProgress struct {
	mu             sync.Mutex
	passed, failed int
	finished       bool
}

func (p *countingProgress) Update(passed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passed, p.failed = passed, failed
}

func (p *countingProgress) Finish() { p.finished = true }

func makeCases(n int) []domain.TestCase {
	cases := make([]domain.TestCase, n)
	for i := range cases {
		name := fmt.Sprintf("case-%d", i)
		cases[i] = domain.TestCase{ID: name, Suite: "pool", Name: name}
	}
	return cases
}

func TestWorkerPool_PreservesDeclarationOrder(t *testing.T) {
	cfg := config.New()
	cfg.Workers = 3
	runner := &stubRunner{fail: map[string]bool{"case-2": true}}
	pool := NewWorkerPool(cfg, runner, events.NewBus())
	progress := &countingProgress{}
	pool.SetProgress(progress)

	cases := makeCases(7)
	results, _, err := pool.Execute(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, len(cases))
	for i, r := range results {
		assert.Equal(t, cases[i].ID, r.Case.ID)
	}
	assert.Equal(t, domain.StatusFailed, results[2].Status)
	assert.Equal(t, 6, progress.passed)
	assert.Equal(t, 1, progress.failed)
	assert.True(t, progress.finished)
}

func TestWorkerPool_Bail(t *testing.T) {
	cfg := config.New()
	cfg.Workers = 1
	runner := &stubRunner{fail: map[string]bool{"case-0": true}}
	pool := NewWorkerPool(cfg, runner, events.NewBus())

	results, _, err := pool.ExecuteWithOptions(context.Background(), makeCases(4), true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, errs.Assertion, errs.KindOf(results[0].Err))
	for _, r := range results[1:] {
		assert.Equal(t, domain.StatusFailed, r.Status)
		assert.Equal(t, errs.Aborted, errs.KindOf(r.Err))
	}
}

func TestWorkerPool_RunTimeout(t *testing.T) {
	cfg := config.New()
	cfg.Workers = 1
	cfg.RunTimeout = 50 * time.Millisecond
	runner := &stubRunner{delay: time.Minute}
	pool := NewWorkerPool(cfg, runner, events.NewBus())

	results, _, err := pool.Execute(context.Background(), makeCases(3))
	require.NoError(t, err)
	assert.Equal(t, int32(1), runner.calls.Load())
	for _, r := range results {
		assert.Equal(t, domain.StatusFailed, r.Status)
		assert.Equal(t, errs.Timeout, errs.KindOf(r.Err))
	}
}

func TestWorkerPool_ReportingStartFailureRunsNothing(t *testing.T) {
	bus := events.NewBus()
	bus.On(events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
		if ev.Kind == events.RunStarted {
			return errors.New("results dir is read-only")
		}
		return nil
	}))
	runner := &stubRunner{}
	pool := NewWorkerPool(config.New(), runner, bus)

	results, _, err := pool.Execute(context.Background(), makeCases(2))
	require.Error(t, err)
	assert.Equal(t, errs.Configuration, errs.KindOf(err))
	assert.Empty(t, results)
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestWorkerPool_EmitsRunSummary(t *testing.T) {
	bus := events.NewBus()
	var finished *events.RunInfo
	var caseEvents atomic.Int32
	bus.On(events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
		switch ev.Kind {
		case events.RunFinished:
			finished = ev.Run
		case events.CaseFinished:
			caseEvents.Add(1)
		}
		return nil
	}))
	cfg := config.New()
	cfg.Workers = 2
	cfg.CommandTimeout = 0
	cfg.Screenshots = false
	runner := NewRunner(cfg, browsertest.NewDriver(testPages()), bus)
	pool := NewWorkerPool(cfg, runner, bus)

	cases := []domain.TestCase{
		{ID: "a", Name: "a", Body: []domain.Action{visit(homeURL), title("Hora do QA")}},
		{ID: "b", Name: "b", Body: []domain.Action{visit(homeURL), title("ausente")}},
	}
	_, _, err := pool.Execute(context.Background(), cases)
	require.NoError(t, err)
	require.NotNil(t, finished)
	assert.Equal(t, 2, finished.Total)
	assert.Equal(t, 1, finished.Passed)
	assert.Equal(t, 1, finished.Failed)
	assert.Equal(t, int32(2), caseEvents.Load())
}

func TestWorkerPool_NoCases(t *testing.T) {
	results, _, err := NewWorkerPool(config.New(), &stubRunner{}, events.NewBus()).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
