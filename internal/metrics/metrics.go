// Package metrics exposes Prometheus collectors for the pointer server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aimpointer"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds the session and message collectors.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionsTotal    prometheus.Counter
	SessionsRejected prometheus.Counter
	Messages         *prometheus.CounterVec
	MalformedFrames  prometheus.Counter
	ActuatorErrors   *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of connected control sessions.",
		}),
		SessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "opened_total",
			Help:      "Total number of control sessions opened.",
		}),
		SessionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "rejected_total",
			Help:      "Connections refused because the session limit was reached.",
		}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "messages_total",
			Help:      "Inbound control messages by type.",
		}, []string{"type"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "protocol",
			Name:      "malformed_frames_total",
			Help:      "Frames that could not be decoded.",
		}),
		ActuatorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "actuator",
			Name:      "errors_total",
			Help:      "Failed cursor operations by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(m.ActiveSessions, m.SessionsTotal, m.SessionsRejected, m.Messages, m.MalformedFrames, m.ActuatorErrors)
	return m
}

// MessageLabel maps a message type to a bounded label value.
func MessageLabel(msgType string) string {
	switch msgType {
	case "absolute_position", "click", "calibrate", "reset_calibration":
		return msgType
	default:
		return "unknown"
	}
}
