package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-mdm/internal/events"
)

const namespace = "graylogic_mdm"

// Metrics holds the Prometheus collectors for the MDM server.
//
// Each Metrics owns its registry, so tests can create as many as they like
// without colliding on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	checkins       *prometheus.CounterVec
	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	pushes         *prometheus.CounterVec
	devices        *prometheus.GaugeVec
	queueDepth     *prometheus.GaugeVec
}

// New creates and registers the collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		checkins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkin",
				Name:      "messages_total",
				Help:      "Check-in messages processed, by message type.",
			},
			[]string{"message_type"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "transitions_total",
				Help:      "Command status transitions.",
			},
			[]string{"command_type", "status"},
		),
		commandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "transition_latency_seconds",
				Help:      "Time between consecutive command transitions.",
				Buckets:   []float64{1, 5, 30, 60, 300, 900, 3600, 21600, 86400},
			},
			[]string{"command_type", "transition"},
		),
		pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "push",
				Name:      "notifications_total",
				Help:      "Wake requests sent, by push mode and outcome.",
			},
			[]string{"mode", "success"},
		),
		devices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "devices",
				Help:      "Devices by enrolment status.",
			},
			[]string{"status"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "command",
				Name:      "queue_depth",
				Help:      "Commands by current status.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.checkins, m.commands, m.commandLatency, m.pushes,
		m.devices, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest counts a handled request. route is the chi route
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, route, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, route, statusLabel).Observe(duration.Seconds())
}

// SetDeviceCounts replaces the device gauge values.
func (m *Metrics) SetDeviceCounts(counts map[string]int) {
	for status, n := range counts {
		m.devices.WithLabelValues(status).Set(float64(n))
	}
}

// SetQueueDepth replaces the command gauge values.
func (m *Metrics) SetQueueDepth(counts map[string]int) {
	m.queueDepth.Reset()
	for status, n := range counts {
		m.queueDepth.WithLabelValues(status).Set(float64(n))
	}
}

// Publish implements events.Sink.
func (m *Metrics) Publish(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TypeDeviceCheckin, events.TypeDeviceCheckout:
		m.checkins.WithLabelValues(e.MessageType).Inc()
	case events.TypeCommandQueued, events.TypeCommandSent, events.TypeCommandResponded:
		m.commands.WithLabelValues(e.CommandType, e.Status).Inc()
		if e.Latency > 0 {
			m.commandLatency.WithLabelValues(e.CommandType, string(e.Type)).Observe(e.Latency.Seconds())
		}
	case events.TypePushSent:
		success := e.Success != nil && *e.Success
		m.pushes.WithLabelValues(e.PushMode, strconv.FormatBool(success)).Inc()
	}
}
