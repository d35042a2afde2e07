package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// ChromeOptions configures a live browser session against the registry site.
type ChromeOptions struct {
	// URL is the registry search page.
	URL string

	// SearchQuery, when non-empty, is typed into the search box before the
	// manual handoff so the operator only has to solve the CAPTCHA and click
	// Search.
	SearchQuery string

	// SearchBoxSelector locates the search input. Defaults to "#q".
	SearchBoxSelector string

	// RowSelector locates data rows. Defaults to tablehtml.DefaultRowSelector.
	RowSelector string

	// TableSelector is the element whose outer HTML is snapshotted per page.
	// Defaults to "table".
	TableSelector string

	Headless bool

	// Confirm is where the operator's "ready" keystroke is read from.
	// Required for WaitForManualReady; cmd wires os.Stdin.
	Confirm io.Reader

	Logger zerolog.Logger
}

// Chrome drives a chromedp browser session.
//
// It deliberately snapshots the table's outer HTML and hands it to the shared
// extraction function rather than walking the DOM node by node: dynamic
// re-renders invalidate node handles mid-walk, a single HTML read does not.
type Chrome struct {
	opts    ChromeOptions
	ctx     context.Context
	cancel  context.CancelFunc
	extract func(html, rowSelector string) ([]RawRow, error)
}

// nextButtonJS locates an enabled "Next" pagination control and clicks it.
// Returns true if a click happened.
const nextButtonJS = `(() => {
	const btns = Array.from(document.querySelectorAll("button, a"));
	const next = btns.find(b => /next|>/i.test(b.textContent || "") && !b.disabled &&
		!(b.getAttribute("aria-disabled") === "true"));
	if (!next) { return false; }
	next.click();
	return true;
})()`

// NewChrome starts a browser and navigates to opts.URL.
//
// The returned driver owns the browser; Close releases it. extract is the
// shared HTML-to-rows function (tablehtml.ExtractRows).
func NewChrome(parent context.Context, opts ChromeOptions, extract func(html, rowSelector string) ([]RawRow, error)) (*Chrome, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("chrome driver: missing target URL")
	}
	if opts.SearchBoxSelector == "" {
		opts.SearchBoxSelector = "#q"
	}
	if opts.TableSelector == "" {
		opts.TableSelector = "table"
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		ctxCancel()
		allocCancel()
	}

	if err := chromedp.Run(ctx, chromedp.Navigate(opts.URL)); err != nil {
		cancel()
		return nil, fmt.Errorf("chrome driver: navigate %s: %w", opts.URL, err)
	}

	return &Chrome{opts: opts, ctx: ctx, cancel: cancel, extract: extract}, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() { c.cancel() }

// WaitForManualReady pre-fills the search box, prints the handoff banner, and
// blocks until the operator presses Enter.
func (c *Chrome) WaitForManualReady(ctx context.Context) error {
	if c.opts.SearchQuery != "" {
		err := chromedp.Run(c.ctx,
			chromedp.WaitVisible(c.opts.SearchBoxSelector, chromedp.ByQuery),
			chromedp.Click(c.opts.SearchBoxSelector, chromedp.ByQuery),
			chromedp.SendKeys(c.opts.SearchBoxSelector, c.opts.SearchQuery, chromedp.ByQuery),
		)
		if err != nil {
			// Pre-filling is a convenience; the operator can type it.
			c.opts.Logger.Warn().Err(err).Msg("could not pre-fill search box")
		}
	}

	c.opts.Logger.Info().Msg("manual handoff: solve the CAPTCHA, run the search, confirm the results table is visible, then press Enter")

	if c.opts.Confirm == nil {
		return fmt.Errorf("chrome driver: no confirmation reader configured")
	}

	confirmed := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(c.opts.Confirm).ReadString('\n')
		confirmed <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-confirmed:
		if err != nil && err != io.EOF {
			return fmt.Errorf("chrome driver: read confirmation: %w", err)
		}
		c.opts.Logger.Info().Msg("operator confirmed table visibility")
		return nil
	}
}

func (c *Chrome) ListVisibleRows(ctx context.Context) ([]RawRow, error) {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML(c.opts.TableSelector, &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("chrome driver: read table html: %w", err)
	}
	return c.extract(html, c.opts.RowSelector)
}

func (c *Chrome) ClickNext(ctx context.Context) (bool, error) {
	var clicked bool
	if err := chromedp.Run(c.ctx, chromedp.Evaluate(nextButtonJS, &clicked)); err != nil {
		return false, fmt.Errorf("chrome driver: click next: %w", err)
	}
	return clicked, nil
}

// WaitForRender waits for at least one data row to be visible, bounded by
// timeout. A timeout is not an error: the caller's retry loop decides what an
// empty page means.
func (c *Chrome) WaitForRender(ctx context.Context, timeout time.Duration) error {
	sel := c.opts.RowSelector
	if sel == "" {
		sel = "table tbody tr"
	}

	waitCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err != nil && waitCtx.Err() != nil {
		return nil
	}
	return err
}

var _ Driver = (*Chrome)(nil)
