package datadog

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"regetl/internal/metrics"
)

// fakeSubmitter records submitted payloads instead of doing HTTP.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestBackend(t *testing.T) (*Backend, *fakeSubmitter) {
	t.Helper()
	t.Setenv("ENV", "")
	t.Setenv("DD_ENV", "")

	fake := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName: "test_job",
		// A very long tick keeps the loop quiet; tests call Flush directly.
		FlushEvery: time.Hour,
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		submitter:  fake,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b, fake
}

func TestFlush_EmptySubmitsNothing(t *testing.T) {
	b, fake := newTestBackend(t)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fake.count() != 0 {
		t.Fatalf("payloads=%d, want 0 for empty buffers", fake.count())
	}
}

func TestFlush_CountersAggregateAndReset(t *testing.T) {
	b, fake := newTestBackend(t)

	labels := metrics.Labels{"job": "test_job", "kind": "added"}
	b.IncCounter(metrics.MetricRecordsTotal, 2, labels)
	b.IncCounter(metrics.MetricRecordsTotal, 3, labels)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("payloads=%d, want 1", fake.count())
	}

	series := fake.payloads[0].Series
	if len(series) != 1 {
		t.Fatalf("len(series)=%d, want 1 aggregated counter", len(series))
	}
	s := series[0]
	if s.Metric != metrics.MetricRecordsTotal {
		t.Fatalf("Metric=%q, want %q", s.Metric, metrics.MetricRecordsTotal)
	}
	if got := *s.Points[0].Value; got != 5 {
		t.Fatalf("value=%v, want 5 (2+3 aggregated)", got)
	}

	wantTags := []string{"env:unknown", "job:test_job", "kind:added"}
	if !reflect.DeepEqual(s.Tags, wantTags) {
		t.Fatalf("Tags=%v, want %v", s.Tags, wantTags)
	}

	// Buffers must reset: a second flush has nothing to send.
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush() err=%v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("payloads=%d after empty flush, want still 1", fake.count())
	}
}

func TestFlush_HistogramPercentiles(t *testing.T) {
	b, fake := newTestBackend(t)

	for _, v := range []float64{0.1, 0.2, 0.3, 0.4} {
		b.ObserveHistogram(metrics.MetricPageDurationSeconds, v, metrics.Labels{"job": "test_job"})
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}

	series := fake.payloads[0].Series
	if len(series) != 5 {
		t.Fatalf("len(series)=%d, want 5 (p50/p90/p99/max/samples)", len(series))
	}

	byName := map[string]float64{}
	for _, s := range series {
		byName[s.Metric] = *s.Points[0].Value
	}
	if got := byName[metrics.MetricPageDurationSeconds+".max"]; got != 0.4 {
		t.Fatalf("max=%v, want 0.4", got)
	}
	if got := byName[metrics.MetricPageDurationSeconds+".samples"]; got != 4 {
		t.Fatalf("samples=%v, want 4", got)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5}
	if got := percentileNearestRank(s, 0.5); got != 3 {
		t.Fatalf("p50=%v, want 3", got)
	}
	if got := percentileNearestRank(s, 0); got != 1 {
		t.Fatalf("p0=%v, want 1", got)
	}
	if got := percentileNearestRank(s, 1); got != 5 {
		t.Fatalf("p100=%v, want 5", got)
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty=%v, want 0", got)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	got := ParseTagsCSV(" env:prod , service:regetl ,, ")
	want := []string{"env:prod", "service:regetl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTagsCSV()=%v, want %v", got, want)
	}
	if got := ParseTagsCSV(""); got != nil {
		t.Fatalf("ParseTagsCSV(\"\")=%v, want nil", got)
	}
}
