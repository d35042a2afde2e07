// Package prompush pushes buffered run metrics to a Prometheus Pushgateway.
//
// Scrape-based collection does not fit a short-lived harvest run, so the
// backend registers metrics on a private registry and pushes the whole
// registry on Flush. The "job" label is not attached to individual series;
// it becomes the Pushgateway grouping key instead.
package prompush

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"regetl/internal/metrics"
)

// Backend implements metrics.Backend on top of a Pushgateway.
type Backend struct {
	mu         sync.Mutex
	reg        *prometheus.Registry
	pusher     *push.Pusher
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec  *prometheus.CounterVec
	keys []string
}

type histogramEntry struct {
	vec  *prometheus.HistogramVec
	keys []string
}

// NewBackend builds a backend pushing to gatewayURL under the given job name.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, errors.New("prompush: empty gateway URL")
	}
	if strings.TrimSpace(jobName) == "" {
		jobName = "regetl"
	}

	reg := prometheus.NewRegistry()
	return &Backend{
		reg:        reg,
		pusher:     push.New(gatewayURL, jobName).Gatherer(reg),
		counters:   make(map[string]*counterEntry),
		histograms: make(map[string]*histogramEntry),
	}, nil
}

// IncCounter adds value to the named counter. The label key set is fixed by
// the first observation of each metric; later calls with unknown keys have
// those keys ignored, and missing keys are reported as empty strings.
func (b *Backend) IncCounter(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	entry, ok := b.counters[name]
	if !ok {
		keys := labelKeys(labels)
		entry = &counterEntry{
			keys: keys,
			vec: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: name,
				Help: name,
			}, keys),
		}
		b.reg.MustRegister(entry.vec)
		b.counters[name] = entry
	}
	b.mu.Unlock()

	entry.vec.WithLabelValues(labelValues(entry.keys, labels)...).Add(value)
}

// ObserveHistogram records value into the named histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	b.mu.Lock()
	entry, ok := b.histograms[name]
	if !ok {
		keys := labelKeys(labels)
		entry = &histogramEntry{
			keys: keys,
			vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    name,
				Help:    name,
				Buckets: prometheus.DefBuckets,
			}, keys),
		}
		b.reg.MustRegister(entry.vec)
		b.histograms[name] = entry
	}
	b.mu.Unlock()

	entry.vec.WithLabelValues(labelValues(entry.keys, labels)...).Observe(value)
}

// Flush pushes the registry to the gateway. Add rather than Push so repeated
// runs under the same job name do not wipe each other's grouping keys.
func (b *Backend) Flush() error {
	return b.pusher.Add()
}

// labelKeys returns the sorted label names, minus "job" which is carried as
// the Pushgateway grouping key.
func labelKeys(labels metrics.Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		if k == "job" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func labelValues(keys []string, labels metrics.Labels) []string {
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = labels[k]
	}
	return values
}
