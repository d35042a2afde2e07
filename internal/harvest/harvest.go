// Package harvest runs the page-by-page extraction loop: materialize rows,
// parse them into records, skip what the store already holds, append the
// rest, and advance until the source runs out of pages.
package harvest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"regetl/internal/driver"
	"regetl/internal/metrics"
	"regetl/internal/paginate"
	"regetl/internal/record"
	"regetl/internal/store"
)

// Options configures a run.
type Options struct {
	// Job names the run in logs and metrics. Empty defaults to "regetl".
	Job string

	// PaceMin/PaceMax bound the randomized wait between page visits. Both
	// zero disables pacing. PaceMax below PaceMin is treated as PaceMin.
	PaceMin time.Duration
	PaceMax time.Duration

	// Paginate carries the per-page retry knobs.
	Paginate paginate.Options

	// Sleep and Rand are seams for tests. Defaults: time.Sleep, rand.Float64.
	Sleep func(time.Duration)
	Rand  func() float64
}

func (o Options) withDefaults() Options {
	if o.Job == "" {
		o.Job = "regetl"
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	return o
}

// Summary reports what a run did.
type Summary struct {
	PagesVisited            int
	RecordsAdded            int
	RecordsSkippedDuplicate int
	RecordsFailedParse      int
}

// Run drives a full harvest. It loads previously stored keys so reruns only
// append new records, waits for the operator to clear any challenge page,
// then walks pages until the source reports no more.
//
// A page that never materializes rows ends the run gracefully (nil error);
// navigation and store failures end it with an error. The summary is valid
// either way.
func Run(ctx context.Context, drv driver.Driver, st store.Store, log zerolog.Logger, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	var sum Summary

	seen, err := st.LoadSeenKeys(ctx)
	if err != nil {
		metrics.RecordRun(opts.Job, "failed")
		return sum, fmt.Errorf("harvest: load seen keys: %w", err)
	}
	log.Info().Int("known_records", len(seen)).Str("job", opts.Job).Msg("starting harvest")

	if err := drv.WaitForManualReady(ctx); err != nil {
		metrics.RecordRun(opts.Job, "failed")
		return sum, fmt.Errorf("harvest: waiting for page readiness: %w", err)
	}

	pageOpts := opts.Paginate
	pageOpts.Logger = log
	ctrl := paginate.New(drv, pageOpts)

	for {
		pageStart := time.Now()

		rows, err := ctrl.Rows(ctx)
		if err != nil {
			metrics.RecordRun(opts.Job, "failed")
			return sum, err
		}
		if ctrl.State().Terminal() {
			break
		}

		sum.PagesVisited++
		added, dup, failed := 0, 0, 0
		for _, row := range rows {
			rec, err := record.FromCells(row.Cells)
			if err != nil {
				failed++
				log.Warn().Err(err).Int("page", ctrl.Page()).Msg("skipping unparseable row")
				continue
			}

			key := rec.Key()
			if _, ok := seen[key]; ok {
				dup++
				continue
			}

			if err := st.Append(ctx, rec); err != nil {
				sum.RecordsAdded += added
				sum.RecordsSkippedDuplicate += dup
				sum.RecordsFailedParse += failed
				metrics.RecordRun(opts.Job, "failed")
				return sum, fmt.Errorf("harvest: append %s: %w", key, err)
			}
			seen[key] = struct{}{}
			added++
		}

		sum.RecordsAdded += added
		sum.RecordsSkippedDuplicate += dup
		sum.RecordsFailedParse += failed

		metrics.RecordPage(opts.Job, time.Since(pageStart))
		metrics.RecordRecords(opts.Job, metrics.KindAdded, added)
		metrics.RecordRecords(opts.Job, metrics.KindDuplicate, dup)
		metrics.RecordRecords(opts.Job, metrics.KindParseFailed, failed)

		log.Info().
			Int("page", ctrl.Page()).
			Int("added", added).
			Int("duplicate", dup).
			Int("parse_failed", failed).
			Msg("page done")

		if d := pace(opts.PaceMin, opts.PaceMax, opts.Rand); d > 0 {
			opts.Sleep(d)
		}

		moved, err := ctrl.Advance(ctx)
		if err != nil {
			metrics.RecordRun(opts.Job, "failed")
			return sum, err
		}
		if !moved {
			break
		}
	}

	status := "completed"
	if ctrl.State() == paginate.StateStalled {
		status = "stalled"
	}
	metrics.RecordRun(opts.Job, status)

	log.Info().
		Str("status", status).
		Int("pages", sum.PagesVisited).
		Int("added", sum.RecordsAdded).
		Int("duplicate", sum.RecordsSkippedDuplicate).
		Int("parse_failed", sum.RecordsFailedParse).
		Msg("harvest finished")
	return sum, nil
}

// pace picks a wait uniformly from [min, max].
func pace(min, max time.Duration, randFloat func() float64) time.Duration {
	if min < 0 {
		min = 0
	}
	if max <= min {
		return min
	}
	return min + time.Duration(randFloat()*float64(max-min))
}
