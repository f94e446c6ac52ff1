package domain

import (
	"time"

	"hqe/internal/errs"
)

// Status is the terminal status of a test case
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Label is a classification label attached to a test case
type Label struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StepEntry is a narrative step attached to a test case
type StepEntry struct {
	Name   string    `json:"name"`
	Status Status    `json:"status"`
	Start  time.Time `json:"start"`
	Stop   time.Time `json:"stop"`
}

// CaseResult represents the result of executing one test case
type CaseResult struct {
	Case       TestCase
	Status     Status
	Err        error // nil iff Status is passed
	Failed     *Action
	Labels     []Label
	Steps      []StepEntry
	Warnings   []error // AnnotationWarning, never affects Status
	Screenshot string
	Start      time.Time
	Stop       time.Time
}

// Duration returns the time taken to execute
func (r CaseResult) Duration() time.Duration {
	return r.Stop.Sub(r.Start)
}

// Passed reports whether the case ended passed
func (r CaseResult) Passed() bool {
	return r.Status == StatusPassed
}

// ReportEntry is what reporting collaborators receive for one test case.
type ReportEntry struct {
	TestName   string
	FullName   string
	Suite      string
	File       string
	Status     Status
	Labels     map[string]string
	Steps      []StepEntry
	Failure    *TestFailure
	Screenshot string
	Start      time.Time
	Stop       time.Time
}

// NewReportEntry builds the report entry for r. Later labels with the same
// name win.
func NewReportEntry(r CaseResult) ReportEntry {
	labels := make(map[string]string, len(r.Labels))
	for _, l := range r.Labels {
		labels[l.Name] = l.Value
	}
	entry := ReportEntry{
		TestName:   r.Case.Name,
		FullName:   r.Case.FullName(),
		Suite:      r.Case.Suite,
		File:       r.Case.File,
		Status:     r.Status,
		Labels:     labels,
		Steps:      append([]StepEntry(nil), r.Steps...),
		Screenshot: r.Screenshot,
		Start:      r.Start,
		Stop:       r.Stop,
	}
	if r.Status == StatusFailed {
		f := NewTestFailure(r)
		entry.Failure = &f
	}
	return entry
}

// NewTestFailure extracts the failure details of a failed result.
func NewTestFailure(r CaseResult) TestFailure {
	f := TestFailure{
		TestID:     r.Case.ID,
		TestName:   r.Case.Name,
		Suite:      r.Case.Suite,
		FilePath:   r.Case.File,
		Screenshot: r.Screenshot,
	}
	if r.Failed != nil {
		f.Action = r.Failed.Describe()
		f.Location = r.Failed.Pos
	}
	if r.Err == nil {
		f.Kind = string(errs.Internal)
		f.Message = "test case failed without an error"
		return f
	}
	f.Kind = string(errs.KindOf(r.Err))
	f.Message = r.Err.Error()
	if classified, ok := errs.As(r.Err); ok {
		f.Subject = classified.Subject
		f.Expected = classified.Expected
		f.Actual = classified.Actual
	}
	return f
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	TotalTestCases  int     `json:"total_test_cases"`
	PassedTestCases int     `json:"passed_test_cases"`
	FailedTestCases int     `json:"failed_test_cases"`
	SpecFiles       int     `json:"spec_files"`
	BaseURL         string  `json:"base_url"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Workers         int     `json:"workers"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}
