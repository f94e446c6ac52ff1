// Package support loads the support file once per run and prepares test
// cases with the shared hooks and commands it declares.
package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"hqe/internal/browser"
	"hqe/internal/config"
	"hqe/internal/ctxlog"
	"hqe/internal/discovery"
	"hqe/internal/domain"
	"hqe/internal/errs"
)

// Support holds the capabilities shared by every test case of a run.
type Support struct {
	Driver   browser.Driver
	Setup    []domain.Action
	Commands map[string][]domain.Action

	cfg *config.Config
}

// Init parses the configured support file. It must run once, before the
// browser is launched and before any test case. A configured file that is
// missing or invalid is a configuration error; an empty SupportFile disables
// support.
func Init(ctx context.Context, cfg *config.Config) (*Support, error) {
	s := &Support{
		Commands: make(map[string][]domain.Action),
		cfg:      cfg,
	}
	path := cfg.GetSupportFile()
	if path == "" {
		ctxlog.FromContext(ctx).Debug("support file disabled")
		return s, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.New(errs.Configuration, fmt.Sprintf("support file %s does not exist", path))
		}
		return nil, errs.Wrap(errs.Configuration, "failed to read support file", err)
	}

	spec, err := discovery.NewParser(cfg.TemplateVars()).ParseSupportFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, "failed to load support file", err)
	}
	s.Setup = spec.Setup
	s.Commands = spec.Commands

	// Commands must expand cleanly before any test case runs
	for name := range s.Commands {
		if _, err := s.Expand([]domain.Action{{Kind: domain.ActionRun, Command: name}}); err != nil {
			return nil, err
		}
	}
	ctxlog.FromContext(ctx).Debug("support file loaded",
		"path", path,
		"hooks", len(s.Setup),
		"commands", len(s.Commands),
	)
	return s, nil
}

// Attach makes driver the browser every prepared test case runs on.
func (s *Support) Attach(driver browser.Driver) {
	s.Driver = driver
}

// Expand inlines run actions from the command table and resolves visit URLs
// against the base URL.
func (s *Support) Expand(actions []domain.Action) ([]domain.Action, error) {
	return s.expand(actions, nil)
}

func (s *Support) expand(actions []domain.Action, stack []string) ([]domain.Action, error) {
	out := make([]domain.Action, 0, len(actions))
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionRun:
			for _, name := range stack {
				if name == a.Command {
					return nil, errs.New(errs.Configuration, fmt.Sprintf("%s: command %q calls itself (%s)", a.Pos, a.Command, strings.Join(append(stack, a.Command), " -> ")))
				}
			}
			body, ok := s.Commands[a.Command]
			if !ok {
				return nil, errs.New(errs.Configuration, fmt.Sprintf("%s: unknown command %q", a.Pos, a.Command))
			}
			expanded, err := s.expand(body, append(stack, a.Command))
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		case domain.ActionVisit:
			resolved, err := s.cfg.ResolveURL(a.URL)
			if err != nil {
				return nil, errs.Wrap(errs.Configuration, a.Pos, err)
			}
			a.URL = resolved
			out = append(out, a)
		default:
			out = append(out, a)
		}
	}
	return out, nil
}

// Prepare returns tc with the global hooks prepended to its setup and every
// command expanded.
func (s *Support) Prepare(tc domain.TestCase) (domain.TestCase, error) {
	setup := make([]domain.Action, 0, len(s.Setup)+len(tc.Setup))
	setup = append(setup, s.Setup...)
	setup = append(setup, tc.Setup...)

	var err error
	if tc.Setup, err = s.Expand(setup); err != nil {
		return domain.TestCase{}, err
	}
	if tc.Body, err = s.Expand(tc.Body); err != nil {
		return domain.TestCase{}, err
	}
	return tc, nil
}

// PrepareAll prepares every case; the first error aborts.
func (s *Support) PrepareAll(cases []domain.TestCase) ([]domain.TestCase, error) {
	prepared := make([]domain.TestCase, 0, len(cases))
	for _, tc := range cases {
		p, err := s.Prepare(tc)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	return prepared, nil
}
