// Package browsertest provides an in-memory browser driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hqe/internal/browser"
)

// Page is what the fake serves for one URL.
type Page struct {
	Title string
	// Text is the page body; Elements maps selectors to their text.
	Text     string
	Elements map[string]string
	// Status other than 0 or 2xx makes Goto fail.
	Status int
	// Later, when set, replaces the page once After observations (Title or
	// Text calls) have been made since the visit. It models content that
	// renders after the load event.
	Later *Page
	After int
}

// Driver is a browser.Driver backed by a static set of pages.
type Driver struct {
	Pages map[string]Page
	// SessionErr, when set, is returned by NewSession.
	SessionErr error

	mu       sync.Mutex
	visits   []string
	sessions int
	open     int
	closed   bool
}

// NewDriver returns a fake driver serving pages.
func NewDriver(pages map[string]Page) *Driver {
	return &Driver{Pages: pages}
}

// NewSession implements browser.Driver.
func (d *Driver) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.SessionErr != nil {
		return nil, d.SessionErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("driver closed")
	}
	d.sessions++
	d.open++
	return &session{driver: d}, nil
}

// Close implements browser.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Visits returns every URL navigated to, across sessions.
func (d *Driver) Visits() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.visits...)
}

// Sessions returns how many sessions were opened.
func (d *Driver) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions
}

// OpenSessions returns how many sessions were opened and not closed.
func (d *Driver) OpenSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type session struct {
	driver   *Driver
	current  *Page
	observed int
}

// view returns the page as seen by the next observation.
func (s *session) view() *Page {
	page := s.current
	if page.Later != nil && s.observed >= page.After {
		page = page.Later
	}
	s.observed++
	return page
}

func (s *session) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.driver.mu.Lock()
	s.driver.visits = append(s.driver.visits, url)
	page, ok := s.driver.Pages[url]
	s.driver.mu.Unlock()
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}
	if page.Status != 0 && (page.Status < 200 || page.Status > 299) {
		return fmt.Errorf("server responded with status %d", page.Status)
	}
	s.current = &page
	s.observed = 0
	return nil
}

func (s *session) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.current == nil {
		return "", nil
	}
	return s.view().Title, nil
}

func (s *session) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.current == nil {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	page := s.view()
	if selector == browser.Body {
		return page.Text, nil
	}
	text, ok := page.Elements[selector]
	if !ok {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	return text, nil
}

func (s *session) Screenshot(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	content := "blank"
	if s.current != nil {
		content = strings.TrimSpace(s.current.Title)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func (s *session) Close() error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	s.driver.open--
	return nil
}
