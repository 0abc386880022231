// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge, tracing helpers,
// and HTTP middleware for the admin endpoints.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all application metrics.
const meterName = "github.com/voxnote/voxnote"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TranscriptionDuration tracks end-to-end assembly latency per audio
	// submission, chunking and retries included.
	TranscriptionDuration metric.Float64Histogram

	// ChunksPerRequest tracks how many model calls each submission required.
	ChunksPerRequest metric.Int64Histogram

	// TranscriptionRequests counts submissions by provider and outcome.
	// Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	TranscriptionRequests metric.Int64Counter

	// ProviderRetries counts rate-limit retry attempts by provider.
	ProviderRetries metric.Int64Counter

	// Deliveries counts transcript deliveries by mode ("inline" or "file").
	Deliveries metric.Int64Counter

	// ActiveHandles tracks live model-client handles (0 or 1 per backend;
	// the idle-release timer drives it back down).
	ActiveHandles metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin/webhook HTTP request processing time.
	// Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model-call latencies, which include multi-second retry backoff.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// chunkBuckets covers the realistic chunk counts for a 20 MB ceiling with a
// 19 MiB chunk size.
var chunkBuckets = []float64{1, 2, 3, 4, 5}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("voxnote.transcription.duration",
		metric.WithDescription("End-to-end transcription latency per audio submission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunksPerRequest, err = m.Int64Histogram("voxnote.transcription.chunks",
		metric.WithDescription("Model calls required per audio submission."),
		metric.WithExplicitBucketBoundaries(chunkBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionRequests, err = m.Int64Counter("voxnote.transcription.requests",
		metric.WithDescription("Total transcription submissions by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRetries, err = m.Int64Counter("voxnote.provider.retries",
		metric.WithDescription("Rate-limit retry attempts by provider."),
	); err != nil {
		return nil, err
	}
	if met.Deliveries, err = m.Int64Counter("voxnote.deliveries",
		metric.WithDescription("Transcript deliveries by mode."),
	); err != nil {
		return nil, err
	}
	if met.ActiveHandles, err = m.Int64UpDownCounter("voxnote.active_handles",
		metric.WithDescription("Live model-client handles."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxnote.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterMemoryGauge registers observable gauges for process heap usage.
// The idle-release policy exists to keep this number down between requests;
// the gauge makes the effect visible.
func RegisterMemoryGauge(mp metric.MeterProvider) error {
	m := mp.Meter(meterName)

	heap, err := m.Int64ObservableGauge("voxnote.mem.heap_alloc",
		metric.WithDescription("Bytes of allocated heap objects."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}
	sys, err := m.Int64ObservableGauge("voxnote.mem.sys",
		metric.WithDescription("Total bytes obtained from the OS."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		o.ObserveInt64(heap, int64(ms.HeapAlloc))
		o.ObserveInt64(sys, int64(ms.Sys))
		return nil
	}, heap, sys)
	return err
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

// RecordTranscription records a submission counter increment with the
// standard attribute set.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, status string) {
	m.TranscriptionRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordRetry records a rate-limit retry attempt.
func (m *Metrics) RecordRetry(ctx context.Context, provider string) {
	m.ProviderRetries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordDelivery records a transcript delivery by mode.
func (m *Metrics) RecordDelivery(ctx context.Context, mode string) {
	m.Deliveries.Add(ctx, 1,
		metric.WithAttributes(attribute.String("mode", mode)),
	)
}
