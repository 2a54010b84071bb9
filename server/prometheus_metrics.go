package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics is a MetricsCollector backed by
// github.com/prometheus/client_golang, grounded on the same library the
// rest of this pack reaches for when it needs counters/histograms rather
// than hand-rolled atomics.
type PrometheusMetrics struct {
	commands      *prometheus.CounterVec
	commandTiming *prometheus.HistogramVec
	transferBytes *prometheus.CounterVec
	connections   *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers a PrometheusMetrics collector
// against reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_commands_total",
			Help: "FTP commands processed, labelled by command and outcome.",
		}, []string{"command", "success"}),
		commandTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "ftpd_command_duration_seconds",
			Help: "Command handler latency.",
		}, []string{"command"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_transfer_bytes_total",
			Help: "Bytes moved over data channels, labelled by operation.",
		}, []string{"operation"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_connections_total",
			Help: "Control connection attempts, labelled by outcome.",
		}, []string{"accepted", "reason"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ftpd_auth_attempts_total",
			Help: "PASS attempts, labelled by outcome.",
		}, []string{"success"}),
	}
	reg.MustRegister(m.commands, m.commandTiming, m.transferBytes, m.connections, m.authAttempts)
	return m
}

func (m *PrometheusMetrics) RecordCommand(cmd string, success bool, duration time.Duration) {
	m.commands.WithLabelValues(cmd, boolLabel(success)).Inc()
	m.commandTiming.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	m.transferBytes.WithLabelValues(operation).Add(float64(bytes))
}

func (m *PrometheusMetrics) RecordConnection(accepted bool, reason string) {
	m.connections.WithLabelValues(boolLabel(accepted), reason).Inc()
}

func (m *PrometheusMetrics) RecordAuthentication(success bool, user string) {
	m.authAttempts.WithLabelValues(boolLabel(success)).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
