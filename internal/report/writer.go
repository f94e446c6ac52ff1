// Package report bridges test case events to reporting collaborators: the
// Allure results directory and a Prometheus textfile.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"hqe/internal/config"
	"hqe/internal/domain"
	"hqe/internal/errs"
	"hqe/internal/events"

	"github.com/google/uuid"
)

// Framework is the value of the framework label on every result
const Framework = "hqe"

// AllureWriter writes one result file per finished test case
type AllureWriter struct {
	dir string
	cfg *config.Config

	mu   sync.Mutex
	open map[string]*caseState
}

type caseState struct {
	result   *Result
	openStep int
}

// NewAllureWriter creates the results directory and checks it is writable.
func NewAllureWriter(cfg *config.Config) (*AllureWriter, error) {
	dir := cfg.GetResultsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	check, err := os.CreateTemp(dir, ".hqe-write-check-*")
	if err != nil {
		return nil, fmt.Errorf("results dir %s is not writable: %w", dir, err)
	}
	check.Close()
	os.Remove(check.Name())

	return &AllureWriter{
		dir:  dir,
		cfg:  cfg,
		open: make(map[string]*caseState),
	}, nil
}

// Register creates the Allure writer and subscribes it to bus. A results
// directory that cannot be written is a configuration error.
func Register(bus *events.Bus, cfg *config.Config) (*events.Registration, error) {
	w, err := NewAllureWriter(cfg)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "reporting could not be initialised", err)
	}
	return bus.On(w), nil
}

// Handle implements events.Listener.
func (w *AllureWriter) Handle(ctx context.Context, ev events.Event) error {
	if ev.Kind != events.RunStarted && ev.Kind != events.RunFinished && ev.Case == nil {
		return nil
	}
	switch ev.Kind {
	case events.RunStarted:
		return w.writeEnvironment(ev.Run)
	case events.CaseStarted:
		w.start(*ev.Case, ev.Time)
	case events.Label:
		return w.update(ev.Case, func(s *caseState) {
			s.result.Labels = append(s.result.Labels, Label{Name: ev.Label.Name, Value: ev.Label.Value})
		})
	case events.Step:
		return w.update(ev.Case, func(s *caseState) {
			s.closeStep(domain.StatusPassed, ev.Time)
			s.result.Steps = append(s.result.Steps, Step{
				Name:  ev.Step,
				Stage: stageRunning,
				Start: ev.Time.UnixMilli(),
			})
			s.openStep = len(s.result.Steps) - 1
		})
	case events.CaseFinished:
		if ev.Result == nil {
			return nil
		}
		return w.finish(ev.Result)
	}
	return nil
}

func (w *AllureWriter) start(tc domain.TestCase, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open[tc.ID] = &caseState{result: w.newResult(tc, at), openStep: -1}
}

func (w *AllureWriter) update(tc *domain.TestCase, fn func(*caseState)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	state, ok := w.open[tc.ID]
	if !ok {
		return fmt.Errorf("no result in progress for %q", tc.FullName())
	}
	fn(state)
	return nil
}

func (w *AllureWriter) finish(r *domain.CaseResult) error {
	w.mu.Lock()
	state, ok := w.open[r.Case.ID]
	delete(w.open, r.Case.ID)
	w.mu.Unlock()

	entry := domain.NewReportEntry(*r)
	if !ok {
		// no CaseStarted seen: labels come from the result itself
		state = &caseState{result: w.newResult(r.Case, entry.Start), openStep: -1}
		names := make([]string, 0, len(entry.Labels))
		for name := range entry.Labels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			state.result.Labels = append(state.result.Labels, Label{Name: name, Value: entry.Labels[name]})
		}
	}

	res := state.result
	state.closeStep(entry.Status, entry.Stop)
	res.Status = toStatus(entry.Status)
	res.Stage = stageFinished
	res.Stop = entry.Stop.UnixMilli()
	if entry.Failure != nil {
		res.StatusDetails = &StatusDetails{Message: entry.Failure.Message, Trace: trace(*entry.Failure)}
	}
	if entry.Screenshot != "" {
		attachment, err := w.attach(res.UUID, entry.Screenshot)
		if err != nil {
			return err
		}
		res.Attachments = append(res.Attachments, attachment)
	}
	return w.writeJSON(res.UUID+"-result.json", res)
}

func (w *AllureWriter) newResult(tc domain.TestCase, at time.Time) *Result {
	labels := []Label{
		{Name: "suite", Value: tc.Suite},
		{Name: "framework", Value: Framework},
		{Name: "language", Value: "go"},
	}
	if tc.File != "" {
		labels = append(labels, Label{Name: "package", Value: filepath.ToSlash(w.relPath(tc.File))})
	}
	for _, tag := range tc.Tags {
		labels = append(labels, Label{Name: "tag", Value: tag})
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(w.historyKey(tc))).String()
	return &Result{
		UUID:        uuid.NewString(),
		HistoryID:   id,
		TestCaseID:  id,
		Name:        tc.Name,
		FullName:    tc.FullName(),
		Stage:       stageRunning,
		Steps:       []Step{},
		Labels:      labels,
		Parameters:  []Parameter{},
		Attachments: []Attachment{},
		Start:       at.UnixMilli(),
	}
}

// historyKey identifies a test case across runs. It includes the suite file
// relative to the project, so same-named cases in different files stay apart.
func (w *AllureWriter) historyKey(tc domain.TestCase) string {
	if tc.File == "" {
		return tc.ID
	}
	return filepath.ToSlash(w.relPath(tc.File)) + "::" + tc.Suite + "::" + tc.Name
}

func (w *AllureWriter) relPath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	project, err := filepath.Abs(w.cfg.ProjectPath)
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(project, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func (s *caseState) closeStep(status domain.Status, at time.Time) {
	if s.openStep < 0 {
		return
	}
	step := &s.result.Steps[s.openStep]
	step.Status = toStatus(status)
	step.Stage = stageFinished
	step.Stop = at.UnixMilli()
	s.openStep = -1
}

func toStatus(s domain.Status) string {
	if s == domain.StatusPassed {
		return "passed"
	}
	return "failed"
}

func trace(f domain.TestFailure) string {
	var lines []string
	lines = append(lines, f.Kind)
	if f.Action != "" {
		lines = append(lines, "at "+f.Action)
	}
	if f.Location != "" {
		lines = append(lines, "   "+f.Location)
	}
	return strings.Join(lines, "\n")
}

// attach copies a file into the results dir so the report can reference it.
func (w *AllureWriter) attach(resultUUID, path string) (Attachment, error) {
	src, err := os.Open(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("open attachment: %w", err)
	}
	defer src.Close()

	name := resultUUID + "-attachment" + filepath.Ext(path)
	dst, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return Attachment{}, fmt.Errorf("copy attachment: %w", err)
	}
	if err := dst.Close(); err != nil {
		return Attachment{}, fmt.Errorf("copy attachment: %w", err)
	}
	return Attachment{Name: "screenshot", Source: name, Type: attachmentType(path)}, nil
}

func attachmentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (w *AllureWriter) writeEnvironment(run *events.RunInfo) error {
	env := map[string]string{
		"BaseUrl": w.cfg.BaseURL,
		"Browser": w.cfg.Browser,
		"Driver":  w.cfg.Driver,
	}
	if run != nil && run.BaseURL != "" {
		env["BaseUrl"] = run.BaseURL
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, env[k])
	}
	if err := os.WriteFile(filepath.Join(w.dir, "environment.properties"), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

func (w *AllureWriter) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
