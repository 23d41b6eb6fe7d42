package middleware

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamvault/streamvault"
	"github.com/streamvault/streamvault/metadata"
)

// metricsNamespace prefixes every metric this decorator registers.
const metricsNamespace = "streamvault"

// MetricsEventStore wraps a streamvault.EventStore, recording a
// per-operation call counter, a latency histogram and a dedicated
// concurrency-error counter for appendTo/create conflicts.
type MetricsEventStore struct {
	next streamvault.EventStore

	calls             *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	concurrencyErrors prometheus.Counter
}

// NewMetricsEventStore wraps next, registering its collectors against reg.
// A nil reg registers against prometheus.DefaultRegisterer.
func NewMetricsEventStore(next streamvault.EventStore, reg prometheus.Registerer) *MetricsEventStore {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &MetricsEventStore{
		next: next,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_store_calls_total",
			Help:      "Total EventStore operations, labeled by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "event_store_call_duration_seconds",
			Help:      "EventStore operation latency in seconds, labeled by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		concurrencyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "concurrency_errors_total",
			Help:      "Total appendTo/create calls that lost a unique-index race.",
		}),
	}

	reg.MustRegister(m.calls, m.duration, m.concurrencyErrors)
	return m
}

var _ streamvault.EventStore = &MetricsEventStore{}

func (m *MetricsEventStore) observe(op string, err error, start time.Time) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.calls.WithLabelValues(op, outcome).Inc()

	var concErr *streamvault.ConcurrencyError
	if errors.As(err, &concErr) {
		m.concurrencyErrors.Inc()
	}
}

// Create implements streamvault.EventStore.
func (m *MetricsEventStore) Create(ctx context.Context, streamName streamvault.StreamName, meta interface{}, events []streamvault.Message) error {
	start := time.Now()
	err := m.next.Create(ctx, streamName, meta, events)
	m.observe("create", err, start)
	return err
}

// AppendTo implements streamvault.EventStore.
func (m *MetricsEventStore) AppendTo(ctx context.Context, streamName streamvault.StreamName, events []streamvault.Message) error {
	start := time.Now()
	err := m.next.AppendTo(ctx, streamName, events)
	m.observe("appendTo", err, start)
	return err
}

// Delete implements streamvault.EventStore.
func (m *MetricsEventStore) Delete(ctx context.Context, streamName streamvault.StreamName) error {
	start := time.Now()
	err := m.next.Delete(ctx, streamName)
	m.observe("delete", err, start)
	return err
}

// HasStream implements streamvault.ReadOnlyEventStore.
func (m *MetricsEventStore) HasStream(ctx context.Context, streamName streamvault.StreamName) bool {
	return m.next.HasStream(ctx, streamName)
}

// FetchStreamMetadata implements streamvault.ReadOnlyEventStore.
func (m *MetricsEventStore) FetchStreamMetadata(ctx context.Context, streamName streamvault.StreamName) (interface{}, bool) {
	return m.next.FetchStreamMetadata(ctx, streamName)
}

// Load implements streamvault.ReadOnlyEventStore.
func (m *MetricsEventStore) Load(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	start := time.Now()
	stream, err := m.next.Load(ctx, streamName, fromNumber, count, matcher)
	m.observe("load", err, start)
	return stream, err
}

// LoadReverse implements streamvault.ReadOnlyEventStore.
func (m *MetricsEventStore) LoadReverse(ctx context.Context, streamName streamvault.StreamName, fromNumber int64, count *uint, matcher metadata.Matcher) (streamvault.EventStream, error) {
	start := time.Now()
	stream, err := m.next.LoadReverse(ctx, streamName, fromNumber, count, matcher)
	m.observe("loadReverse", err, start)
	return stream, err
}

// StreamsWithPrefix forwards to next if next implements streamvault.StreamFinder.
func (m *MetricsEventStore) StreamsWithPrefix(ctx context.Context, prefix string) ([]streamvault.StreamName, error) {
	finder, ok := m.next.(streamvault.StreamFinder)
	if !ok {
		return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
	}
	return finder.StreamsWithPrefix(ctx, prefix)
}

// AllStreams forwards to next if next implements streamvault.StreamFinder.
func (m *MetricsEventStore) AllStreams(ctx context.Context) ([]streamvault.StreamName, error) {
	finder, ok := m.next.(streamvault.StreamFinder)
	if !ok {
		return nil, &streamvault.ExtensionNotAvailableError{Extension: "StreamFinder"}
	}
	return finder.AllStreams(ctx)
}

var _ streamvault.StreamFinder = &MetricsEventStore{}
