package execution

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"hqe/internal/browser/browsertest"
	"hqe/internal/config"
	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const homeURL = "https://horadoqa.com.br/"

func testPages() map[string]browsertest.Page {
	return map[string]browsertest.Page{
		homeURL: {
			Title:    "Hora do QA | Testes de software",
			Text:     "Bem-vindo ao Hora do QA",
			Elements: map[string]string{"h1": "Hora do QA"},
		},
		"https://horadoqa.com.br/500": {Title: "Erro", Status: 500},
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	cfg.CommandTimeout = 0
	cfg.Screenshots = false
	return cfg
}

func visit(url string) domain.Action {
	return domain.Action{Kind: domain.ActionVisit, URL: url, Pos: "home.e2e.hcl:3"}
}

func contains(text string) domain.Action {
	return domain.Action{Kind: domain.ActionContains, Text: text, Pos: "home.e2e.hcl:4"}
}

func title(text string) domain.Action {
	return domain.Action{Kind: domain.ActionTitleContains, Text: text, Pos: "home.e2e.hcl:5"}
}

func TestRunner_Passes(t *testing.T) {
	driver := browsertest.NewDriver(testPages())
	runner := NewRunner(testConfig(t), driver, events.NewBus())

	tc := domain.TestCase{
		ID:    "home::loads",
		Suite: "Home do Hora do QA",
		Name:  "Deve carregar a página inicial",
		Setup: []domain.Action{visit(homeURL)},
		Body: []domain.Action{
			{Kind: domain.ActionLabel, Name: "testType", Value: "regression"},
			{Kind: domain.ActionStep, Name: "Visita a página inicial"},
			contains("Hora do QA"),
			title("Hora do QA"),
			{Kind: domain.ActionContains, Selector: "h1", Text: "QA"},
		},
	}
	result := runner.Run(context.Background(), tc)

	require.Equal(t, domain.StatusPassed, result.Status)
	assert.NoError(t, result.Err)
	assert.Nil(t, result.Failed)
	assert.Equal(t, []domain.Label{{Name: "testType", Value: "regression"}}, result.Labels)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, domain.StatusPassed, result.Steps[0].Status)
	assert.False(t, result.Stop.Before(result.Start))
	assert.Equal(t, 0, driver.OpenSessions())
}

func TestRunner_NavigationFailureStopsCase(t *testing.T) {
	driver := browsertest.NewDriver(testPages())
	runner := NewRunner(testConfig(t), driver, events.NewBus())

	tc := domain.TestCase{
		Name: "broken",
		Body: []domain.Action{
			{Kind: domain.ActionStep, Name: "abre"},
			visit("https://unreachable.invalid/"),
			visit(homeURL),
		},
	}
	result := runner.Run(context.Background(), tc)

	require.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, errs.Navigation, errs.KindOf(result.Err))
	require.NotNil(t, result.Failed)
	assert.Equal(t, "https://unreachable.invalid/", result.Failed.URL)
	assert.Equal(t, []string{"https://unreachable.invalid/"}, driver.Visits())
	require.Len(t, result.Steps, 1)
	assert.Equal(t, domain.StatusFailed, result.Steps[0].Status)
}

func TestRunner_ErrorStatusIsNavigationFailure(t *testing.T) {
	runner := NewRunner(testConfig(t), browsertest.NewDriver(testPages()), events.NewBus())
	result := runner.Run(context.Background(), domain.TestCase{
		Body: []domain.Action{visit("https://horadoqa.com.br/500")},
	})
	assert.Equal(t, errs.Navigation, errs.KindOf(result.Err))
}

func TestRunner_AssertionFailureCarriesExpectedAndActual(t *testing.T) {
	cfg := testConfig(t)
	cfg.CommandTimeout = 120 * time.Millisecond
	runner := NewRunner(cfg, browsertest.NewDriver(testPages()), events.NewBus())

	start := time.Now()
	result := runner.Run(context.Background(), domain.TestCase{
		Body: []domain.Action{visit(homeURL), title("Página inexistente")},
	})

	require.Equal(t, domain.StatusFailed, result.Status)
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)

	classified, ok := errs.As(result.Err)
	require.True(t, ok)
	assert.Equal(t, errs.Assertion, classified.Kind)
	assert.Equal(t, "title", classified.Subject)
	assert.Equal(t, "Página inexistente", classified.Expected)
	assert.Equal(t, "Hora do QA | Testes de software", classified.Actual)
}

func TestRunner_ActionTimeoutOverridesDefault(t *testing.T) {
	cfg := testConfig(t)
	cfg.CommandTimeout = time.Minute
	runner := NewRunner(cfg, browsertest.NewDriver(testPages()), events.NewBus())

	a := contains("nada disso")
	a.Timeout = 10 * time.Millisecond
	done := make(chan domain.CaseResult, 1)
	go func() {
		done <- runner.Run(context.Background(), domain.TestCase{Body: []domain.Action{visit(homeURL), a}})
	}()

	select {
	case result := <-done:
		assert.Equal(t, errs.Assertion, errs.KindOf(result.Err))
		classified, _ := errs.As(result.Err)
		assert.Equal(t, "page content", classified.Subject)
	case <-time.After(5 * time.Second):
		t.Fatal("assertion did not honour its own timeout")
	}
}

func lateRenderingPages(after int) map[string]browsertest.Page {
	return map[string]browsertest.Page{
		homeURL: {
			Title:    "Carregando...",
			Text:     "Carregando...",
			Elements: map[string]string{"h1": ""},
			After:    after,
			Later: &browsertest.Page{
				Title:    "Hora do QA | Testes de software",
				Text:     "Bem-vindo ao Hora do QA",
				Elements: map[string]string{"h1": "Hora do QA"},
			},
		},
	}
}

func TestRunner_AssertionsPollUntilContentAppears(t *testing.T) {
	tests := []struct {
		name   string
		action domain.Action
	}{
		{"title", title("Hora do QA")},
		{"page content", contains("Bem-vindo")},
		{"selector", domain.Action{Kind: domain.ActionContains, Selector: "h1", Text: "Hora do QA", Pos: "home.e2e.hcl:6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.CommandTimeout = 5 * time.Second
			runner := NewRunner(cfg, browsertest.NewDriver(lateRenderingPages(3)), events.NewBus())

			start := time.Now()
			result := runner.Run(context.Background(), domain.TestCase{
				Body: []domain.Action{visit(homeURL), tt.action},
			})

			require.Equal(t, domain.StatusPassed, result.Status, "error: %v", result.Err)
			// three misses back off 50ms, 100ms and 200ms before the fourth look
			assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
		})
	}
}

func TestRunner_AssertionGivesUpBeforeContentAppears(t *testing.T) {
	cfg := testConfig(t)
	cfg.CommandTimeout = 100 * time.Millisecond
	runner := NewRunner(cfg, browsertest.NewDriver(lateRenderingPages(10)), events.NewBus())

	result := runner.Run(context.Background(), domain.TestCase{
		Body: []domain.Action{visit(homeURL), title("Hora do QA")},
	})

	require.Equal(t, domain.StatusFailed, result.Status)
	classified, ok := errs.As(result.Err)
	require.True(t, ok)
	assert.Equal(t, "Carregando...", classified.Actual)
}

func TestRunner_AnnotationListenerFailureIsWarning(t *testing.T) {
	bus := events.NewBus()
	bus.On(events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
		if ev.Kind == events.Label || ev.Kind == events.Step {
			return errors.New("report store unavailable")
		}
		return nil
	}))
	runner := NewRunner(testConfig(t), browsertest.NewDriver(testPages()), bus)

	result := runner.Run(context.Background(), domain.TestCase{
		Body: []domain.Action{
			{Kind: domain.ActionLabel, Name: "testType", Value: "regression"},
			{Kind: domain.ActionStep, Name: "Visita a página inicial"},
			visit(homeURL),
		},
	})

	assert.Equal(t, domain.StatusPassed, result.Status)
	require.Len(t, result.Warnings, 2)
	for _, warning := range result.Warnings {
		assert.Equal(t, errs.AnnotationWarning, errs.KindOf(warning))
		assert.ErrorContains(t, warning, "report store unavailable")
	}
	assert.Nil(t, result.Err)
	// the annotations themselves are still on the result
	require.Len(t, result.Labels, 1)
	require.Len(t, result.Steps, 1)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	driver := browsertest.NewDriver(testPages())
	runner := NewRunner(testConfig(t), driver, events.NewBus())

	result := runner.Run(ctx, domain.TestCase{Body: []domain.Action{visit(homeURL)}})
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, errs.Aborted, errs.KindOf(result.Err))
	assert.Equal(t, 0, driver.Sessions())
}

func TestRunner_SessionFailure(t *testing.T) {
	driver := browsertest.NewDriver(testPages())
	driver.SessionErr = errors.New("browser crashed")
	runner := NewRunner(testConfig(t), driver, events.NewBus())

	result := runner.Run(context.Background(), domain.TestCase{Body: []domain.Action{visit(homeURL)}})
	assert.Equal(t, errs.Navigation, errs.KindOf(result.Err))
}

func TestRunner_ScreenshotOnFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Screenshots = true
	runner := NewRunner(cfg, browsertest.NewDriver(testPages()), events.NewBus())

	result := runner.Run(context.Background(), domain.TestCase{
		ID:   "home::fails",
		Body: []domain.Action{visit(homeURL), contains("ausente")},
	})

	require.NotEmpty(t, result.Screenshot)
	_, err := os.Stat(result.Screenshot)
	assert.NoError(t, err)
}

func TestRunner_EmitsCaseEvents(t *testing.T) {
	bus := events.NewBus()
	var kinds []events.Kind
	var finished *domain.CaseResult
	bus.On(events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == events.CaseFinished {
			finished = ev.Result
		}
		return nil
	}))
	runner := NewRunner(testConfig(t), browsertest.NewDriver(testPages()), bus)

	runner.Run(context.Background(), domain.TestCase{Body: []domain.Action{
		{Kind: domain.ActionStep, Name: "abre"},
		visit(homeURL),
		{Kind: domain.ActionLabel, Name: "owner", Value: "qa"},
	}})

	assert.Equal(t, []events.Kind{events.CaseStarted, events.Step, events.Label, events.CaseFinished}, kinds)
	require.NotNil(t, finished)
	assert.Equal(t, domain.StatusPassed, finished.Status)
}

// actionGen draws actions that either succeed or fail against testPages.
func actionGen() *rapid.Generator[domain.Action] {
	return rapid.SampledFrom([]domain.Action{
		visit(homeURL),
		visit("https://unreachable.invalid/"),
		contains("Hora do QA"),
		contains("ausente"),
		title("Testes"),
		title("ausente"),
		{Kind: domain.ActionLabel, Name: "testType", Value: "regression"},
		{Kind: domain.ActionStep, Name: "passo"},
	})
}

func TestRunner_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.SliceOfN(actionGen(), 0, 8).Draw(t, "body")
		tc := domain.TestCase{ID: "prop", Name: "prop", Body: body}

		cfg := config.New()
		cfg.CommandTimeout = 0
		cfg.Screenshots = false

		quiet := NewRunner(cfg, browsertest.NewDriver(testPages()), events.NewBus())
		failing := events.NewBus()
		failing.On(events.ListenerFunc(func(ctx context.Context, ev events.Event) error {
			return errors.New("listener down")
		}))
		noisy := NewRunner(cfg, browsertest.NewDriver(testPages()), failing)

		a := quiet.Run(context.Background(), tc)
		b := noisy.Run(context.Background(), tc)

		for _, r := range []domain.CaseResult{a, b} {
			if r.Status != domain.StatusPassed && r.Status != domain.StatusFailed {
				t.Fatalf("no terminal status: %q", r.Status)
			}
			if (r.Err == nil) != r.Passed() {
				t.Fatalf("status %s with error %v", r.Status, r.Err)
			}
			if r.Passed() && r.Failed != nil {
				t.Fatalf("passed case records failed action %v", r.Failed)
			}
		}
		if a.Status != b.Status {
			t.Fatalf("annotation listener changed status: %s vs %s", a.Status, b.Status)
		}
		if a.Passed() != expectPass(body) {
			t.Fatalf("status %s, expected pass=%v for %v", a.Status, expectPass(body), body)
		}
	})
}

// expectPass replays body against testPages without a browser.
func expectPass(body []domain.Action) bool {
	pages := testPages()
	var current *browsertest.Page
	for _, a := range body {
		switch a.Kind {
		case domain.ActionVisit:
			p, ok := pages[a.URL]
			if !ok {
				return false
			}
			current = &p
		case domain.ActionContains:
			if current == nil || !strings.Contains(current.Text, a.Text) {
				return false
			}
		case domain.ActionTitleContains:
			if current == nil || !strings.Contains(current.Title, a.Text) {
				return false
			}
		}
	}
	return true
}
