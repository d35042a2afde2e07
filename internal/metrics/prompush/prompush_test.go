package prompush

import (
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"regetl/internal/metrics"
)

func TestNewBackend_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend("job", "  "); err == nil {
		t.Fatal("NewBackend() with empty URL, want error")
	}
}

func TestIncCounter_Aggregates(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("test_job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	labels := metrics.Labels{"job": "test_job", "kind": "added"}
	b.IncCounter(metrics.MetricRecordsTotal, 2, labels)
	b.IncCounter(metrics.MetricRecordsTotal, 3, labels)

	got := testutil.ToFloat64(b.counters[metrics.MetricRecordsTotal].vec.WithLabelValues("added"))
	if got != 5 {
		t.Fatalf("counter=%v, want 5", got)
	}
}

func TestIncCounter_NegativeIgnored(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("test_job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.MetricPagesTotal, -1, nil)
	if _, ok := b.counters[metrics.MetricPagesTotal]; ok {
		t.Fatal("negative increment registered a counter, want ignored")
	}
}

func TestObserveHistogram_CountsSamples(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("test_job", "http://localhost:9091")
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	labels := metrics.Labels{"job": "test_job"}
	b.ObserveHistogram(metrics.MetricPageDurationSeconds, 0.25, labels)
	b.ObserveHistogram(metrics.MetricPageDurationSeconds, 0.75, labels)

	entry := b.histograms[metrics.MetricPageDurationSeconds]
	if n := testutil.CollectAndCount(entry.vec); n != 1 {
		t.Fatalf("series=%d, want 1", n)
	}
}

func TestLabelKeys_DropJobAndSort(t *testing.T) {
	t.Parallel()

	got := labelKeys(metrics.Labels{"kind": "added", "job": "x", "apple": "1"})
	want := []string{"apple", "kind"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("labelKeys()=%v, want %v", got, want)
	}
}

func TestLabelValues_MissingKeyEmpty(t *testing.T) {
	t.Parallel()

	got := labelValues([]string{"kind", "status"}, metrics.Labels{"kind": "added"})
	want := []string{"added", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("labelValues()=%v, want %v", got, want)
	}
}
