// Package paginate drives a page driver across the registry's result pages.
//
// The controller is a small state machine: HasPage while the loop may
// continue, NoMorePages when the next control is exhausted, Stalled when
// rendering never produces rows despite bounded retries (terminal but not an
// error), Error when navigation itself fails (terminal and fatal).
package paginate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"regetl/internal/driver"
)

// State is the controller's position in its lifecycle.
type State int

const (
	StateHasPage State = iota
	StateNoMorePages
	StateStalled
	StateError
)

func (s State) String() string {
	switch s {
	case StateHasPage:
		return "has_page"
	case StateNoMorePages:
		return "no_more_pages"
	case StateStalled:
		return "stalled"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the extraction loop must stop.
func (s State) Terminal() bool { return s != StateHasPage }

// Options tunes retry and render-wait behavior.
type Options struct {
	// MaxAttempts bounds row-read retries per page. Defaults to 3.
	MaxAttempts int

	// RetryWait is the pause between row-read attempts. Defaults to 2s.
	RetryWait time.Duration

	// RenderTimeout bounds each wait for page content to settle.
	// Defaults to 10s.
	RenderTimeout time.Duration

	// Sleep is injectable for tests. Defaults to time.Sleep.
	Sleep func(time.Duration)

	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 2 * time.Second
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 10 * time.Second
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return o
}

// Controller sequences row reads and next-page navigation over one driver.
// Not safe for concurrent use; the extraction loop is strictly sequential.
type Controller struct {
	drv   driver.Driver
	opts  Options
	state State
	page  int
}

// New returns a controller positioned on the driver's first page.
func New(drv driver.Driver, opts Options) *Controller {
	return &Controller{
		drv:   drv,
		opts:  opts.withDefaults(),
		state: StateHasPage,
		page:  1,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Page returns the 1-based page number the controller is on.
func (c *Controller) Page() int { return c.page }

// Rows reads the rows visible on the current page.
//
// Row materialization can lag dynamic rendering, so reads are retried up to
// MaxAttempts with a render wait and a short pause between attempts. If every
// attempt yields no rows (or fails transiently), the controller transitions
// to Stalled and Rows returns an empty slice with a nil error: a stall ends
// the run gracefully with whatever was collected so far.
func (c *Controller) Rows(ctx context.Context) ([]driver.RawRow, error) {
	if c.state.Terminal() {
		return nil, fmt.Errorf("paginate: Rows called in terminal state %s", c.state)
	}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := c.drv.ListVisibleRows(ctx)
		if err != nil {
			lastErr = err
			c.opts.Logger.Warn().
				Int("page", c.page).
				Int("attempt", attempt).
				Int("max_attempts", c.opts.MaxAttempts).
				Err(err).
				Msg("row read failed, retrying")
		} else if len(rows) > 0 {
			return rows, nil
		} else {
			c.opts.Logger.Warn().
				Int("page", c.page).
				Int("attempt", attempt).
				Int("max_attempts", c.opts.MaxAttempts).
				Msg("no rows visible yet")
		}

		if attempt == c.opts.MaxAttempts {
			break
		}
		if err := c.drv.WaitForRender(ctx, c.opts.RenderTimeout); err != nil {
			lastErr = err
		}
		c.opts.Sleep(c.opts.RetryWait)
	}

	c.state = StateStalled
	c.opts.Logger.Warn().
		Int("page", c.page).
		AnErr("last_error", lastErr).
		Msg("no rows after exhausting retries, treating as stall")
	return nil, nil
}

// Advance moves to the next page.
//
// Returns false with a nil error when pagination is complete (next control
// absent or disabled). A driver failure transitions to Error and is returned
// as a navigation failure, which is fatal to the run.
func (c *Controller) Advance(ctx context.Context) (bool, error) {
	if c.state.Terminal() {
		return false, nil
	}

	clicked, err := c.drv.ClickNext(ctx)
	if err != nil {
		c.state = StateError
		return false, fmt.Errorf("paginate: advance from page %d: %w", c.page, err)
	}
	if !clicked {
		c.state = StateNoMorePages
		c.opts.Logger.Info().Int("pages", c.page).Msg("next control absent or disabled, pagination complete")
		return false, nil
	}

	// New content must materialize before rows are trusted; this wait is
	// bounded and the next Rows call retries on top of it.
	if err := c.drv.WaitForRender(ctx, c.opts.RenderTimeout); err != nil {
		c.opts.Logger.Warn().Int("page", c.page+1).Err(err).Msg("render wait failed after advance")
	}

	c.page++
	return true, nil
}
