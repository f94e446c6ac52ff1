package domain

import (
	"fmt"
	"time"
)

// ActionKind names one step a test case can take.
type ActionKind string

const (
	ActionVisit         ActionKind = "visit"
	ActionContains      ActionKind = "contains"
	ActionTitleContains ActionKind = "title_contains"
	ActionLabel         ActionKind = "label"
	ActionStep          ActionKind = "step"
	ActionRun           ActionKind = "run"
)

// Action is one entry in a test case body
type Action struct {
	Kind     ActionKind
	URL      string        // visit
	Selector string        // contains; empty means the whole page
	Text     string        // contains, title_contains
	Name     string        // label, step
	Value    string        // label
	Command  string        // run
	Timeout  time.Duration // assertion override; zero means the configured default
	Pos      string        // file:line of the declaring block
}

// IsAnnotation reports whether the action only produces report metadata.
func (a Action) IsAnnotation() bool {
	return a.Kind == ActionLabel || a.Kind == ActionStep
}

// Describe returns a short human readable form used in logs and failures.
func (a Action) Describe() string {
	switch a.Kind {
	case ActionVisit:
		return fmt.Sprintf("visit %s", a.URL)
	case ActionContains:
		if a.Selector != "" {
			return fmt.Sprintf("contains %q in %s", a.Text, a.Selector)
		}
		return fmt.Sprintf("contains %q", a.Text)
	case ActionTitleContains:
		return fmt.Sprintf("title includes %q", a.Text)
	case ActionLabel:
		return fmt.Sprintf("label %s=%s", a.Name, a.Value)
	case ActionStep:
		return fmt.Sprintf("step %q", a.Name)
	case ActionRun:
		return fmt.Sprintf("run %s", a.Command)
	}
	return string(a.Kind)
}

// Suite groups test cases declared in one suite block
type Suite struct {
	Name  string
	File  string
	Tags  []string
	Setup []Action // before_each
	Cases []TestCase
}

// TestCase represents a single declared scenario
type TestCase struct {
	ID    string // file::suite::name, unique per run
	Suite string
	Name  string
	File  string
	Tags  []string
	Setup []Action
	Body  []Action
}

// FullName joins suite and test names the way reports display them.
func (tc TestCase) FullName() string {
	if tc.Suite == "" {
		return tc.Name
	}
	return tc.Suite + " " + tc.Name
}

// HasTag reports whether the test case or its suite carries tag.
func (tc TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SupportSpec is the parsed content of the support file
type SupportSpec struct {
	Setup    []Action
	Commands map[string][]Action
}
