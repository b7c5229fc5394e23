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

	"github.com/sells-group/reso-directory/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRefreshFailureRate   AlertType = "refresh_failure_rate"
	AlertStaleSnapshot        AlertType = "stale_snapshot"
	AlertDirectoryUnavailable AlertType = "directory_unavailable"
)

// minAttemptsForRate is the number of attempts in the window below which the
// failure rate is too noisy to alert on.
const minAttemptsForRate = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
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

// Evaluate checks the metrics against thresholds and returns any alerts.
func (a *Alerter) Evaluate(ms *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := ms.CollectedAt

	// Nothing has ever been served.
	if !ms.SnapshotLoaded && ms.RefreshFailed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDirectoryUnavailable,
			Severity: "critical",
			Message: fmt.Sprintf(
				"No directory data loaded; %d refresh attempt(s) failed in last %dh",
				ms.RefreshFailed, ms.LookbackHours,
			),
			Details: map[string]any{
				"failed":     ms.RefreshFailed,
				"last_error": ms.LastError,
			},
			Timestamp: now,
		})
	}

	// Check refresh failure rate.
	if ms.RefreshTotal >= minAttemptsForRate && ms.RefreshFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRefreshFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Refresh failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted in last %dh)",
				ms.RefreshFailRate*100, a.cfg.FailureRateThreshold*100,
				ms.RefreshFailed, ms.RefreshTotal, ms.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": ms.RefreshFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       ms.RefreshFailed,
				"attempted":    ms.RefreshTotal,
				"last_error":   ms.LastError,
			},
			Timestamp: now,
		})
	}

	// Check snapshot age.
	if a.cfg.StaleAfterHours > 0 && ms.SnapshotLoaded && ms.SnapshotAgeHours > float64(a.cfg.StaleAfterHours) {
		alerts = append(alerts, Alert{
			Type:     AlertStaleSnapshot,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Directory snapshot %s is %.0fh old (threshold %dh)",
				ms.SnapshotID, ms.SnapshotAgeHours, a.cfg.StaleAfterHours,
			),
			Details: map[string]any{
				"snapshot_id":  ms.SnapshotID,
				"age_hours":    ms.SnapshotAgeHours,
				"organizations": ms.SnapshotSize,
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
