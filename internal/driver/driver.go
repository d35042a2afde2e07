// Package driver defines the page-driver capability set the pagination
// controller consumes, and the raw row handle it produces.
//
// Implementations in this package:
//   - Chrome: a live chromedp-backed browser session.
//   - Snapshot: a directory of saved HTML pages, for offline runs and tests.
package driver

import (
	"context"
	"time"
)

// RawRow is the unparsed representation of one table row: cell texts in
// column order. Rows are produced per page and discarded after parsing.
type RawRow struct {
	Cells []string
}

// Driver is the capability set exposed by a page driver.
//
// The controller calls these strictly sequentially; implementations do not
// need to be safe for concurrent use.
type Driver interface {
	// WaitForManualReady blocks until a human confirms the page is ready for
	// automated extraction (CAPTCHA solved, results table visible). Called
	// exactly once, before the extraction loop starts.
	WaitForManualReady(ctx context.Context) error

	// ListVisibleRows reads all data rows currently visible on the page.
	// An empty slice is not an error: dynamic rendering may simply not have
	// materialized rows yet.
	ListVisibleRows(ctx context.Context) ([]RawRow, error)

	// ClickNext attempts to move to the next page. It returns false when the
	// next control is absent or disabled, which means pagination is complete.
	ClickNext(ctx context.Context) (bool, error)

	// WaitForRender waits, up to timeout, for page content to settle after
	// navigation. Returning early is allowed; callers re-check rows anyway.
	WaitForRender(ctx context.Context, timeout time.Duration) error
}
