// Package metrics records engine usage through OpenTelemetry instruments.
//
// Metrics implements usagestats.Sink, so the counters the conversion
// session and the dispatcher already bump become OTel measurements, and
// converter.Observer, so backend calls are timed per operation. The
// Prometheus bridge in provider.go exposes everything on a scrape endpoint.
//
// Tests should build Metrics with NewMetrics over a MeterProvider backed by
// a ManualReader.
package metrics

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"henkan/internal/converter"
	"henkan/internal/usagestats"
)

// meterName is the instrumentation scope of every henkan instrument.
const meterName = "henkan"

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// Events counts every usage counter by name.
	Events metric.Int64Counter

	// Commands counts dispatcher commands. Attributes: state, command.
	Commands metric.Int64Counter

	// Commits counts commits by source state.
	Commits metric.Int64Counter

	// EventDuration records usage timings by name.
	EventDuration metric.Float64Histogram

	// BackendCalls counts converter calls. Attributes: op, status.
	BackendCalls metric.Int64Counter

	// BackendDuration records converter call latency by op.
	BackendDuration metric.Float64Histogram

	// ActiveSessions tracks live engine sessions.
	ActiveSessions metric.Int64UpDownCounter
}

var (
	_ usagestats.Sink    = (*Metrics)(nil)
	_ converter.Observer = (*Metrics)(nil)
)

// latencyBuckets are bucket boundaries in seconds for key handling and
// backend calls, which stay well under a frame.
var latencyBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Events, err = m.Int64Counter("henkan.usage.events",
		metric.WithDescription("Usage counters by name."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("henkan.ime.commands",
		metric.WithDescription("Dispatcher commands by state and command."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("henkan.commits",
		metric.WithDescription("Commits by source state."),
	); err != nil {
		return nil, err
	}
	if met.EventDuration, err = m.Float64Histogram("henkan.usage.duration",
		metric.WithDescription("Usage timings by name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BackendCalls, err = m.Int64Counter("henkan.converter.calls",
		metric.WithDescription("Converter calls by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("henkan.converter.duration",
		metric.WithDescription("Latency of converter calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("henkan.sessions.active",
		metric.WithDescription("Number of live engine sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// IncrementCount implements usagestats.Sink.
func (m *Metrics) IncrementCount(name string) {
	ctx := context.Background()
	m.Events.Add(ctx, 1, metric.WithAttributes(attribute.String("name", name)))

	switch {
	case name == usagestats.SessionCreated:
		m.ActiveSessions.Add(ctx, 1)
	case name == usagestats.SessionDeleted:
		m.ActiveSessions.Add(ctx, -1)
	case strings.HasPrefix(name, "Performed_"):
		state, command, ok := strings.Cut(strings.TrimPrefix(name, "Performed_"), "_")
		if ok {
			m.Commands.Add(ctx, 1, metric.WithAttributes(
				attribute.String("state", state),
				attribute.String("command", command),
			))
		}
	case strings.HasPrefix(name, "CommitFrom"):
		m.Commits.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", strings.TrimPrefix(name, "CommitFrom")),
		))
	}
}

// UpdateTiming implements usagestats.Sink.
func (m *Metrics) UpdateTiming(name string, d time.Duration) {
	m.EventDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("name", name)))
}

// ObserveBackendCall implements converter.Observer.
func (m *Metrics) ObserveBackendCall(ctx context.Context, op string, ok bool, d time.Duration) {
	status := "ok"
	if !ok {
		status = "declined"
	}
	m.BackendCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	))
	m.BackendDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}
