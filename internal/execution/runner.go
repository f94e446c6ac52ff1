package execution

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"hqe/internal/browser"
	"hqe/internal/config"
	"hqe/internal/ctxlog"
	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"

	"github.com/google/uuid"
)

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = time.Second
	// maxActualLen bounds the observed text stored in an assertion failure
	maxActualLen = 200
	// screenshotTimeout bounds the failure screenshot, which runs even when the case was cancelled
	screenshotTimeout = 10 * time.Second
)

// Runner executes a single test case in its own browser session
type Runner struct {
	config *config.Config
	driver browser.Driver
	bus    *events.Bus
}

// NewRunner creates a new Runner
func NewRunner(cfg *config.Config, driver browser.Driver, bus *events.Bus) *Runner {
	return &Runner{config: cfg, driver: driver, bus: bus}
}

// caseRun is the mutable state of one test case execution
type caseRun struct {
	result   domain.CaseResult
	openStep int // index into result.Steps, -1 when none
}

// Run executes setup then body strictly in order. The first navigation or
// assertion error stops the case; annotations never change its status.
func (r *Runner) Run(ctx context.Context, tc domain.TestCase) domain.CaseResult {
	logger := ctxlog.FromContext(ctx).With("test", tc.FullName())
	ctx = ctxlog.WithLogger(ctx, logger)

	run := &caseRun{
		result:   domain.CaseResult{Case: tc, Start: time.Now()},
		openStep: -1,
	}
	r.emit(ctx, events.Event{Kind: events.CaseStarted, Case: &tc})
	logger.Debug("test case started")

	err := r.execute(ctx, tc, run)
	r.finish(run, err)

	result := run.result
	r.emit(ctx, events.Event{Kind: events.CaseFinished, Case: &tc, Result: &result})
	if result.Passed() {
		logger.Info("test case passed", "duration", result.Duration())
	} else {
		logger.Info("test case failed", "duration", result.Duration(), "kind", errs.KindOf(result.Err), "error", result.Err)
	}
	return result
}

func (r *Runner) execute(ctx context.Context, tc domain.TestCase, run *caseRun) error {
	if err := ctx.Err(); err != nil {
		return errs.FromContext(ctx, "test case did not start")
	}

	session, err := r.driver.NewSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return errs.FromContext(ctx, "test case did not start")
		}
		return errs.Wrap(errs.Navigation, "could not open browser session", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			ctxlog.FromContext(ctx).Warn("failed to close browser session", "error", err)
		}
	}()

	actions := make([]domain.Action, 0, len(tc.Setup)+len(tc.Body))
	actions = append(actions, tc.Setup...)
	actions = append(actions, tc.Body...)

	for i := range actions {
		action := actions[i]
		if err := r.perform(ctx, session, tc, action, run); err != nil {
			run.result.Failed = &action
			r.screenshot(ctx, session, tc, run)
			return err
		}
	}
	return nil
}

func (r *Runner) perform(ctx context.Context, session browser.Session, tc domain.TestCase, a domain.Action, run *caseRun) error {
	if a.IsAnnotation() {
		r.record(ctx, tc, a, run)
		return nil
	}
	switch a.Kind {
	case domain.ActionVisit:
		return r.visit(ctx, session, a)
	case domain.ActionContains, domain.ActionTitleContains:
		return r.assert(ctx, session, a)
	case domain.ActionRun:
		// commands are expanded by support before execution
		return errs.New(errs.Internal, fmt.Sprintf("%s: command %q was not expanded", a.Pos, a.Command))
	}
	return errs.New(errs.Internal, fmt.Sprintf("%s: unknown action %q", a.Pos, a.Kind))
}

// record adds a label or step to the result and reports it.
func (r *Runner) record(ctx context.Context, tc domain.TestCase, a domain.Action, run *caseRun) {
	if a.Kind == domain.ActionLabel {
		label := domain.Label{Name: a.Name, Value: a.Value}
		run.result.Labels = append(run.result.Labels, label)
		r.annotate(ctx, run, events.Event{Kind: events.Label, Case: &tc, Label: label})
		return
	}
	now := time.Now()
	run.closeStep(domain.StatusPassed, now)
	run.result.Steps = append(run.result.Steps, domain.StepEntry{Name: a.Name, Start: now})
	run.openStep = len(run.result.Steps) - 1
	r.annotate(ctx, run, events.Event{Kind: events.Step, Case: &tc, Step: a.Name})
}

func (r *Runner) visit(ctx context.Context, session browser.Session, a domain.Action) error {
	if err := session.Goto(ctx, a.URL); err != nil {
		if ctx.Err() != nil {
			return errs.FromContext(ctx, "navigation to "+a.URL+" interrupted")
		}
		return errs.Wrap(errs.Navigation, "failed to load "+a.URL, err)
	}
	return nil
}

// assert polls the page with exponential backoff until the expected text is
// observed or the command timeout expires.
func (r *Runner) assert(ctx context.Context, session browser.Session, a domain.Action) error {
	timeout := a.Timeout
	if timeout == 0 {
		timeout = r.config.CommandTimeout
	}
	deadline := time.Now().Add(timeout)
	backoff := initialBackoff

	var actual string
	var lastErr error
	for {
		actual, lastErr = observe(ctx, session, a)
		if lastErr == nil && strings.Contains(actual, a.Text) {
			return nil
		}
		if ctx.Err() != nil {
			return errs.FromContext(ctx, a.Describe()+" interrupted")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := min(backoff, remaining)
		select {
		case <-ctx.Done():
			return errs.FromContext(ctx, a.Describe()+" interrupted")
		case <-time.After(wait):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return errs.NewAssertion(subject(a), a.Text, excerpt(actual), lastErr)
}

func observe(ctx context.Context, session browser.Session, a domain.Action) (string, error) {
	if a.Kind == domain.ActionTitleContains {
		return session.Title(ctx)
	}
	selector := a.Selector
	if selector == "" {
		selector = browser.Body
	}
	return session.Text(ctx, selector)
}

func subject(a domain.Action) string {
	switch {
	case a.Kind == domain.ActionTitleContains:
		return "title"
	case a.Selector != "":
		return a.Selector
	}
	return "page content"
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxActualLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxActualLen]) + "…"
}

// annotate delivers an annotation event. Listener failures become warnings.
func (r *Runner) annotate(ctx context.Context, run *caseRun, ev events.Event) {
	if err := r.bus.Emit(ctx, ev); err != nil {
		warning := errs.Wrap(errs.AnnotationWarning, fmt.Sprintf("%s annotation not recorded", ev.Kind), err)
		run.result.Warnings = append(run.result.Warnings, warning)
		ctxlog.FromContext(ctx).Warn("annotation not recorded", "kind", errs.AnnotationWarning, "error", err)
	}
}

func (r *Runner) emit(ctx context.Context, ev events.Event) {
	if err := r.bus.Emit(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("reporting listener failed", "event", ev.Kind, "error", err)
	}
}

func (r *Runner) screenshot(ctx context.Context, session browser.Session, tc domain.TestCase, run *caseRun) {
	if !r.config.Screenshots {
		return
	}
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(tc.ID)).String() + ".png"
	path := filepath.Join(r.config.GetScreenshotDir(), name)
	if err := session.Screenshot(shotCtx, path); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to capture screenshot", "error", err)
		return
	}
	run.result.Screenshot = path
}

func (r *Runner) finish(run *caseRun, err error) {
	now := time.Now()
	if err != nil {
		run.result.Status = domain.StatusFailed
		run.result.Err = err
	} else {
		run.result.Status = domain.StatusPassed
	}
	// the step that was open when the case ended takes the case status
	run.closeStep(run.result.Status, now)
	run.result.Stop = now
}

func (c *caseRun) closeStep(status domain.Status, at time.Time) {
	if c.openStep < 0 {
		return
	}
	c.result.Steps[c.openStep].Status = status
	c.result.Steps[c.openStep].Stop = at
	c.openStep = -1
}
