// Package observe provides application-wide observability primitives for
// Readpace: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Readpace metrics.
const meterName = "github.com/readpace/readpace"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// PhraseDuration tracks how long one alignment round takes, from
	// phrase arrival to committed (or deferred) beam state.
	PhraseDuration metric.Float64Histogram

	// --- Counters ---

	// WordsConsumed counts spoken words fed into the aligner.
	WordsConsumed metric.Int64Counter

	// Commits counts committed alignment paths.
	Commits metric.Int64Counter

	// TokensMarked counts token markings. Use with attribute:
	//   attribute.String("status", ...)
	TokensMarked metric.Int64Counter

	// Rollbacks counts backtrack rollbacks, automatic and manual.
	Rollbacks metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live reading sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for live speech-tracking latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("readpace.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PhraseDuration, err = m.Float64Histogram("readpace.phrase.duration",
		metric.WithDescription("Latency of one beam-search alignment round."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WordsConsumed, err = m.Int64Counter("readpace.words.consumed",
		metric.WithDescription("Total spoken words fed into the aligner."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("readpace.alignment.commits",
		metric.WithDescription("Total committed alignment paths."),
	); err != nil {
		return nil, err
	}
	if met.TokensMarked, err = m.Int64Counter("readpace.tokens.marked",
		metric.WithDescription("Total token markings by resulting status."),
	); err != nil {
		return nil, err
	}
	if met.Rollbacks, err = m.Int64Counter("readpace.backtrack.rollbacks",
		metric.WithDescription("Total backtrack rollbacks applied."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("readpace.active_sessions",
		metric.WithDescription("Number of live reading sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("readpace.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// The session core is a synchronous, context-free surface; its convenience
// recorders use the background context.

// PhraseProcessed records one alignment round: the words it consumed and
// how long it took.
func (m *Metrics) PhraseProcessed(words int, elapsed time.Duration) {
	ctx := context.Background()
	m.WordsConsumed.Add(ctx, int64(words))
	m.PhraseDuration.Record(ctx, elapsed.Seconds())
}

// CommitRecorded records one committed alignment path.
func (m *Metrics) CommitRecorded() {
	m.Commits.Add(context.Background(), 1)
}

// TokenMarked records a token marking by resulting status.
func (m *Metrics) TokenMarked(status string) {
	m.TokensMarked.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RollbackRecorded records one applied rollback.
func (m *Metrics) RollbackRecorded() {
	m.Rollbacks.Add(context.Background(), 1)
}

// SessionStarted increments the live-session gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Add(context.Background(), 1)
}

// SessionEnded decrements the live-session gauge.
func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Add(context.Background(), -1)
}

// RecordTranscription records one speech-to-text transcription latency.
func (m *Metrics) RecordTranscription(ctx context.Context, provider string, elapsed time.Duration) {
	m.STTDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
