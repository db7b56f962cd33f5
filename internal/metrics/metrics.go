package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reading metrics
	ReadingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_readings_processed_total",
			Help: "Total number of sensor readings evaluated",
		},
		[]string{"source"},
	)

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_readings_rejected_total",
			Help: "Total number of malformed or non-finite readings dropped",
		},
		[]string{"source"},
	)

	LastVoltage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartgrid_voltage_volts",
			Help: "Most recent voltage reading",
		},
	)

	LastCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartgrid_current_amperes",
			Help: "Most recent current reading",
		},
	)

	LastPower = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartgrid_power_watts",
			Help: "Most recent power reading",
		},
	)

	// Alert metrics
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_alerts_emitted_total",
			Help: "Total number of alerts appended to the log",
		},
		[]string{"kind", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_alerts_suppressed_total",
			Help: "Total number of conditions held back by the cooldown",
		},
		[]string{"kind"},
	)

	AlertsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartgrid_alerts_acknowledged_total",
			Help: "Total number of alerts acknowledged",
		},
	)

	// Mirror metrics
	MirrorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_mirror_events_total",
			Help: "Total number of events written to the remote store",
		},
		[]string{"event", "status"}, // status: ok, error
	)

	MirrorDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartgrid_mirror_dropped_total",
			Help: "Total number of events dropped because the mirror queue was full",
		},
	)

	MirrorQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartgrid_mirror_queue_size",
			Help: "Current number of events waiting to be mirrored",
		},
	)

	// Websocket metrics
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartgrid_websocket_clients",
			Help: "Number of connected dashboard clients",
		},
	)

	WebsocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartgrid_websocket_dropped_total",
			Help: "Total number of broadcasts dropped for slow clients",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartgrid_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartgrid_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
)
