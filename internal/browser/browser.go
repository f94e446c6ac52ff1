// Package browser is the boundary to the browser-automation engine. A Driver
// owns one browser process per run and hands out isolated sessions, one per
// test case.
package browser

import (
	"context"
	"fmt"
	"time"

	"hqe/internal/config"
)

// Driver launches browser sessions
type Driver interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is an isolated browser context with a single page
type Session interface {
	// Goto navigates and waits for the page load event.
	Goto(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Text returns the rendered text of the first element matching selector.
	Text(ctx context.Context, selector string) (string, error)
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Options configures a driver
type Options struct {
	Browser         string
	Headless        bool
	PageLoadTimeout time.Duration
	// QueryTimeout bounds a single title or text lookup; assertions retry on top of it.
	QueryTimeout   time.Duration
	ViewportWidth  int
	ViewportHeight int
}

// DefaultQueryTimeout bounds one observation inside an assertion retry loop.
const DefaultQueryTimeout = 500 * time.Millisecond

// OptionsFromConfig derives driver options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser:         cfg.Browser,
		Headless:        cfg.Headless,
		PageLoadTimeout: cfg.PageLoadTimeout,
		QueryTimeout:    DefaultQueryTimeout,
		ViewportWidth:   1280,
		ViewportHeight:  720,
	}
}

// New launches the driver selected by cfg.Driver.
func New(cfg *config.Config) (Driver, error) {
	opts := OptionsFromConfig(cfg)
	switch cfg.Driver {
	case "playwright":
		return NewPlaywright(opts)
	case "chromedp":
		return NewChromedp(opts)
	}
	return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
}

// Body is the selector used when an assertion does not name one.
const Body = "body"
