// Package metrics records session and unit activity as OpenTelemetry
// instruments.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "contact_finder"

// Unit outcomes.
const (
	OutcomeFound         = "found"
	OutcomeNoProfile     = "no_profile"
	OutcomeNoEmail       = "no_email"
	OutcomeError         = "error"
	OutcomeInvalidDomain = "invalid_domain"
)

// Metrics holds the instruments. A nil *Metrics records nothing.
type Metrics struct {
	sessionsStarted  metric.Int64Counter
	sessionsFinished metric.Int64Counter
	activeSessions   metric.Int64UpDownCounter
	unitsProcessed   metric.Int64Counter
	unitDuration     metric.Float64Histogram
	eventsPublished  metric.Int64Counter
}

// New creates instruments on the global meter provider.
func New() (*Metrics, error) {
	return NewMetrics(otel.GetMeterProvider())
}

// NewMetrics creates instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(Metrics)
	var err error

	if m.sessionsStarted, err = meter.Int64Counter(
		"sessions_started_total",
		metric.WithDescription("Total number of search sessions started"),
	); err != nil {
		return nil, err
	}

	if m.sessionsFinished, err = meter.Int64Counter(
		"sessions_finished_total",
		metric.WithDescription("Total number of search sessions finished, by terminal status"),
	); err != nil {
		return nil, err
	}

	if m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of sessions currently running"),
	); err != nil {
		return nil, err
	}

	if m.unitsProcessed, err = meter.Int64Counter(
		"units_processed_total",
		metric.WithDescription("Total number of (domain, role) units processed, by outcome"),
	); err != nil {
		return nil, err
	}

	if m.unitDuration, err = meter.Float64Histogram(
		"unit_duration_seconds",
		metric.WithDescription("Time taken to process one unit"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.eventsPublished, err = meter.Int64Counter(
		"events_published_total",
		metric.WithDescription("Total number of events written to stream consumers"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// SessionStarted counts a new session and marks it active.
func (m *Metrics) SessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1)
	m.activeSessions.Add(ctx, 1)
}

// SessionFinished counts a finished session by terminal status.
func (m *Metrics) SessionFinished(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.sessionsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.activeSessions.Add(ctx, -1)
}

// ObserveUnit records one processed unit.
func (m *Metrics) ObserveUnit(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.unitsProcessed.Add(ctx, 1, attrs)
	m.unitDuration.Record(ctx, d.Seconds(), attrs)
}

// EventPublished counts one event written to a stream client.
func (m *Metrics) EventPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}
