package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Chromedp drives a local Chrome over the DevTools protocol.
type Chromedp struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	opts          Options
}

// NewChromedp starts a Chrome process.
func NewChromedp(opts Options) (*Chromedp, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("could not launch chrome: %w", err)
	}
	return &Chromedp{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		opts:          opts,
	}, nil
}

// NewSession opens a new tab with cleared cookies.
func (c *Chromedp) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx, network.ClearBrowserCookies()); err != nil {
		cancel()
		return nil, fmt.Errorf("could not open tab: %w", err)
	}
	return &chromedpSession{tab: tabCtx, cancel: cancel, opts: c.opts}, nil
}

// Close shuts Chrome down
func (c *Chromedp) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

type chromedpSession struct {
	tab    context.Context
	cancel context.CancelFunc
	opts   Options
}

// run executes actions in the tab, bounded by timeout and by ctx.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(s.tab, s.opts.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return err
	}
	if resp != nil && resp.Status >= 400 {
		return fmt.Errorf("server responded with status %d", resp.Status)
	}
	return nil
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.opts.QueryTimeout, chromedp.Title(&title))
	return title, err
}

func (s *chromedpSession) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, s.opts.QueryTimeout, chromedp.Text(selector, &text, chromedp.ByQuery))
	return text, err
}

func (s *chromedpSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, s.opts.PageLoadTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, buf, 0644)
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}
