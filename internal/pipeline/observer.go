package pipeline

import (
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/metrics"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
)

// AlertMetrics counts and logs alert log changes.
type AlertMetrics struct {
	logger logger.Logger
}

func NewAlertMetrics(log logger.Logger) *AlertMetrics {
	return &AlertMetrics{logger: log}
}

func (m *AlertMetrics) AlertAppended(a monitor.Alert) {
	metrics.AlertsEmitted.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	m.logger.Info().
		Str("id", a.ID).
		Str("kind", string(a.Kind)).
		Str("severity", string(a.Severity)).
		Msg(a.Message)
}

func (m *AlertMetrics) AlertAcknowledged(a monitor.Alert) {
	metrics.AlertsAcknowledged.Inc()
	m.logger.Info().Str("id", a.ID).Msg("Alert acknowledged")
}
