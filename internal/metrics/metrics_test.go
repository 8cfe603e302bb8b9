package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics_Noop(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.SessionStarted(ctx)
		m.ObserveUnit(ctx, OutcomeFound, 120*time.Millisecond)
		m.EventPublished(ctx, "result")
		m.SessionFinished(ctx, "completed")
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.SessionStarted(ctx)
		m.ObserveUnit(ctx, OutcomeError, time.Second)
		m.EventPublished(ctx, "progress")
		m.SessionFinished(ctx, "stopped")
	})
}
