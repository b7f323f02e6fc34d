package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TicksTotal counts orchestrator ticks by outcome (completed, failed).
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of scheduler ticks by outcome",
		},
		[]string{"outcome"},
	)

	// ScansTotal counts finished URL scans by verdict (clean, suspicious, malicious, error).
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_scans_total",
			Help: "Total number of URL scans by verdict",
		},
		[]string{"verdict"},
	)

	// ScansRunning is the number of scans currently in flight.
	ScansRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "url_scans_running",
			Help: "Number of URL scans currently running",
		},
	)

	// AlertsSentTotal counts alert notifications that went out (new or repeat).
	AlertsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Total number of alert notifications sent",
		},
		[]string{"kind"}, // new, repeat
	)

	// NotificationsTotal counts per-channel delivery attempts by outcome.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total notification delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"}, // outcome: sent, failed
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestTotal,
		TicksTotal, ScansTotal, ScansRunning,
		AlertsSentTotal, NotificationsTotal,
	)
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordScan records one finished scan by verdict.
func RecordScan(verdict string) {
	ScansTotal.WithLabelValues(verdict).Inc()
}

// RecordNotification records one delivery attempt.
func RecordNotification(channel string, ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	NotificationsTotal.WithLabelValues(channel, outcome).Inc()
}
