package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinEmailHitRate:      0.2,
	})

	snap := &Snapshot{
		SessionsTotal:    40,
		SessionsErrored:  2,
		SessionErrorRate: 0.05,
		ContactsFound:    30,
		EmailsFound:      15,
		EmailHitRate:     0.5,
		LookbackHours:    24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_SessionErrorRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	snap := &Snapshot{
		SessionsTotal:    20,
		SessionsErrored:  8,
		SessionErrorRate: 0.4,
		LookbackHours:    24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSessionErrorRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_EmailHitRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5, MinEmailHitRate: 0.3})

	snap := &Snapshot{
		SessionsTotal: 10,
		ContactsFound: 20,
		EmailsFound:   2,
		EmailHitRate:  0.1,
		LookbackHours: 6,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertEmailHitRate, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "10.0%")
}

func TestAlerter_Evaluate_EmailHitRateDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.5})

	snap := &Snapshot{ContactsFound: 20, EmailHitRate: 0}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10, MinEmailHitRate: 0.5})

	snap := &Snapshot{
		SessionsTotal:    10,
		SessionsErrored:  5,
		SessionErrorRate: 0.5,
		ContactsFound:    10,
		EmailsFound:      1,
		EmailHitRate:     0.1,
		LookbackHours:    24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertSessionErrorRate, alerts[0].Type)
	assert.Equal(t, AlertEmailHitRate, alerts[1].Type)
}

func TestAlerter_Evaluate_MinimumSampleRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10, MinEmailHitRate: 0.5})

	// Below the minimum sample for both rate alerts.
	snap := &Snapshot{
		SessionsTotal:    3,
		SessionsErrored:  2,
		SessionErrorRate: 0.666,
		ContactsFound:    4,
		EmailHitRate:     0,
		LookbackHours:    24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertSessionErrorRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertEmailHitRate, Severity: "medium", Message: "test alert 2"},
	}

	assert.Equal(t, 2, a.SendAlerts(context.Background(), alerts))
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSessionErrorRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSessionErrorRate, Message: "test"}})
	assert.Equal(t, 0, sent)
}
