// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// It buffers observations in memory, submits them on a ticker (default once
// per minute), and submits one final time on Close(). Long runs therefore
// produce a real time series instead of a single spike at exit.
//
// Concurrency model:
//   - extraction code calls IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"regetl/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "regetl".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls submission cadence. Defaults to 60s.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK this backend
// needs; depending on the interface instead of *datadogV2.MetricsApi keeps
// unit tests off the network.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api    metricsSubmitter
	apiCtx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	// buffers keyed by "<metric>\x00<joined tags>"
	counts  map[string]bufferedCount
	samples map[string]bufferedSamples
}

type bufferedCount struct {
	metric string
	tags   []string
	value  float64
}

type bufferedSamples struct {
	metric string
	tags   []string
	values []float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - FlushEvery <= 0 defaults to 60s; empty JobName defaults to "regetl".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors occur during Flush (network), not during construction.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "regetl"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		apiCtx:     dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counts:     make(map[string]bufferedCount),
		samples:    make(map[string]bufferedSamples),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

func bufferKey(metric string, tags []string) string {
	return metric + "\x00" + strings.Join(tags, ",")
}

// labelTags converts metrics labels into Datadog tags on top of the base
// tags. The "job" label is dropped: it is already a base tag.
func (b *Backend) labelTags(labels metrics.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		if k == "job" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]string, 0, len(b.baseTags)+len(keys))
	tags = append(tags, b.baseTags...)
	for _, k := range keys {
		tags = append(tags, k+":"+labels[k])
	}
	return tags
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	tags := b.labelTags(labels)
	key := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.counts[key]
	c.metric = name
	c.tags = tags
	c.value += delta
	b.counts[key] = c
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	tags := b.labelTags(labels)
	key := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.samples[key]
	s.metric = name
	s.tags = tags
	s.values = append(s.values, value)
	b.samples[key] = s
}

// snapshotAndReset grabs current buffers and resets them. Buffers are reset
// even if the subsequent submission fails, to keep the extraction loop fast.
func (b *Backend) snapshotAndReset() (map[string]bufferedCount, map[string]bufferedSamples) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counts, samples := b.counts, b.samples
	b.counts = make(map[string]bufferedCount)
	b.samples = make(map[string]bufferedSamples)
	return counts, samples
}

// Flush submits buffered metrics to Datadog. Nil if there is nothing to send.
func (b *Backend) Flush() error {
	counts, samples := b.snapshotAndReset()
	if len(counts) == 0 && len(samples) == 0 {
		return nil
	}

	series := buildSeries(counts, samples, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.apiCtx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure (no locks, clocks, or network), which keeps the
// naming/tagging contract directly testable. Histogram buffers are published
// as percentile gauges.
func buildSeries(counts map[string]bufferedCount, samples map[string]bufferedSamples, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counts)+5*len(samples))

	countKeys := make([]string, 0, len(counts))
	for k := range counts {
		countKeys = append(countKeys, k)
	}
	sort.Strings(countKeys)
	for _, k := range countKeys {
		c := counts[k]
		if c.value == 0 {
			continue
		}
		series = append(series, metricSeries(c.metric, datadogV2.METRICINTAKETYPE_COUNT, c.value, c.tags, nowUnix))
	}

	sampleKeys := make([]string, 0, len(samples))
	for k := range samples {
		sampleKeys = append(sampleKeys, k)
	}
	sort.Strings(sampleKeys)
	for _, k := range sampleKeys {
		s := samples[k]
		if len(s.values) == 0 {
			continue
		}
		cp := append([]float64(nil), s.values...)
		sort.Float64s(cp)

		series = append(series,
			metricSeries(s.metric+".p50", datadogV2.METRICINTAKETYPE_GAUGE, percentileNearestRank(cp, 0.50), s.tags, nowUnix),
			metricSeries(s.metric+".p90", datadogV2.METRICINTAKETYPE_GAUGE, percentileNearestRank(cp, 0.90), s.tags, nowUnix),
			metricSeries(s.metric+".p99", datadogV2.METRICINTAKETYPE_GAUGE, percentileNearestRank(cp, 0.99), s.tags, nowUnix),
			metricSeries(s.metric+".max", datadogV2.METRICINTAKETYPE_GAUGE, cp[len(cp)-1], s.tags, nowUnix),
			metricSeries(s.metric+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(cp)), s.tags, nowUnix),
		)
	}

	return series
}

func metricSeries(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:regetl".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
