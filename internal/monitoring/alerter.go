package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSessionErrorRate AlertType = "session_error_rate"
	AlertEmailHitRate     AlertType = "email_hit_rate"
)

// minSample is the number of observations required before a rate alert fires.
const minSample = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.SessionsTotal >= minSample && snap.SessionErrorRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSessionErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Session error rate %.1f%% exceeds threshold %.1f%% (%d errored / %d sessions in last %dh)",
				snap.SessionErrorRate*100, a.cfg.FailureRateThreshold*100,
				snap.SessionsErrored, snap.SessionsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"error_rate": snap.SessionErrorRate,
				"threshold":  a.cfg.FailureRateThreshold,
				"errored":    snap.SessionsErrored,
				"total":      snap.SessionsTotal,
			},
			Timestamp: now,
		})
	}

	// A sudden drop usually means an exhausted or revoked provider key.
	if a.cfg.MinEmailHitRate > 0 && snap.ContactsFound >= minSample && snap.EmailHitRate < a.cfg.MinEmailHitRate {
		alerts = append(alerts, Alert{
			Type:     AlertEmailHitRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Email hit rate %.1f%% below minimum %.1f%% (%d emails / %d contacts in last %dh)",
				snap.EmailHitRate*100, a.cfg.MinEmailHitRate*100,
				snap.EmailsFound, snap.ContactsFound, snap.LookbackHours,
			),
			Details: map[string]any{
				"hit_rate":       snap.EmailHitRate,
				"minimum":        a.cfg.MinEmailHitRate,
				"emails_found":   snap.EmailsFound,
				"email_errors":   snap.EmailErrors,
				"contacts_found": snap.ContactsFound,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
