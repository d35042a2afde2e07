// Package metrics defines a minimal backend abstraction for run telemetry.
//
// Core extraction code depends only on Backend; the Datadog and Pushgateway
// implementations live in subpackages and are selected by the command. The
// default backend is a nop, so metrics never become a hard dependency of a
// run.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimension key/value pairs.
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use; Flush submits anything
// buffered and may be called at any time, including once more at shutdown.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names emitted by the extraction loop.
//
// These are an operational contract: dashboards and monitors key on them.
const (
	MetricPagesTotal          = "regetl_pages_total"
	MetricRecordsTotal        = "regetl_records_total"
	MetricRunsTotal           = "regetl_runs_total"
	MetricPageDurationSeconds = "regetl_page_duration_seconds"
)

// Record kinds for MetricRecordsTotal.
const (
	KindAdded       = "added"
	KindDuplicate   = "duplicate"
	KindParseFailed = "parse_failed"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs the process-wide backend. Intended to be called once
// at startup, before the extraction loop runs.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend.
func Flush() error { return current().Flush() }

// RecordPage counts one processed page and observes its duration.
func RecordPage(job string, dur time.Duration) {
	b := current()
	labels := Labels{"job": job}
	b.IncCounter(MetricPagesTotal, 1, labels)
	b.ObserveHistogram(MetricPageDurationSeconds, dur.Seconds(), labels)
}

// RecordRecords counts n records of one kind (added/duplicate/parse_failed).
func RecordRecords(job, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(MetricRecordsTotal, float64(n), Labels{"job": job, "kind": kind})
}

// RecordRun counts one finished run with its terminal status
// (e.g. "completed", "stalled", "failed").
func RecordRun(job, status string) {
	current().IncCounter(MetricRunsTotal, 1, Labels{"job": job, "status": status})
}
