package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Playwright drives chromium, firefox or webkit through playwright-go.
type Playwright struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
}

// NewPlaywright starts the Playwright driver and launches the configured browser.
func NewPlaywright(opts Options) (*Playwright, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch opts.Browser {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", opts.Browser, err)
	}
	return &Playwright{pw: pw, browser: browser, opts: opts}, nil
}

// NewSession opens a fresh browser context so no state leaks between test cases.
func (p *Playwright) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bctx, err := p.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  p.opts.ViewportWidth,
			Height: p.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	bctx.SetDefaultNavigationTimeout(ms(p.opts.PageLoadTimeout))
	bctx.SetDefaultTimeout(ms(p.opts.QueryTimeout))

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return &playwrightSession{bctx: bctx, page: page, opts: p.opts}, nil
}

// Close closes the browser and stops the driver
func (p *Playwright) Close() error {
	if err := p.browser.Close(); err != nil {
		_ = p.pw.Stop()
		return fmt.Errorf("close browser: %w", err)
	}
	return p.pw.Stop()
}

type playwrightSession struct {
	bctx playwright.BrowserContext
	page playwright.Page
	opts Options
}

func (s *playwrightSession) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(ms(s.opts.PageLoadTimeout)),
	})
	if err != nil {
		return err
	}
	if resp != nil && !resp.Ok() {
		return fmt.Errorf("server responded with status %d", resp.Status())
	}
	return nil
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title()
}

func (s *playwrightSession) Text(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(ms(s.opts.QueryTimeout)),
	})
}

func (s *playwrightSession) Screenshot(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
