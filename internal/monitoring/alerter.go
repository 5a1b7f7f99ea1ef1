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

	"github.com/sells-group/credit-scorer/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDegradedRate AlertType = "degraded_rate"
	AlertHighRiskRate AlertType = "high_risk_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
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
// Windows smaller than MinSample never alert.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap.Total == 0 || snap.Total < a.cfg.MinSample {
		return nil
	}

	var alerts []Alert
	now := time.Now().UTC()

	if snap.DegradedRate > a.cfg.DegradedRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDegradedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%.1f%% of scores in the last %dh were rule-only (threshold %.1f%%)",
				snap.DegradedRate*100, snap.LookbackHours, a.cfg.DegradedRateThreshold*100,
			),
			Details: map[string]any{
				"degraded":  snap.Degraded,
				"total":     snap.Total,
				"threshold": a.cfg.DegradedRateThreshold,
			},
			Timestamp: now,
		})
	}

	if snap.HighRiskRate > a.cfg.HighRiskRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertHighRiskRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of applicants in the last %dh were high risk (threshold %.1f%%)",
				snap.HighRiskRate*100, snap.LookbackHours, a.cfg.HighRiskRateThreshold*100,
			),
			Details: map[string]any{
				"high":      snap.High,
				"total":     snap.Total,
				"avg_score": snap.AvgScore,
				"threshold": a.cfg.HighRiskRateThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL. Without a
// webhook the alerts are only logged. Returns the number delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	sent := 0
	for _, alert := range alerts {
		log := zap.L().With(
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		if a.cfg.WebhookURL == "" {
			log.Warn("monitoring: alert", zap.String("message", alert.Message))
			continue
		}
		if err := a.sendWebhook(ctx, alert); err != nil {
			log.Error("monitoring: failed to send alert", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert sent")
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
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
