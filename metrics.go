package seclai

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for requests and run streams.
// A nil *Metrics records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	sessionSeconds *prometheus.HistogramVec
	frames         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seclai",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of API responses by method and status code",
			},
			[]string{"method", "status"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seclai",
				Subsystem: "stream",
				Name:      "sessions_total",
				Help:      "Total number of run stream sessions by outcome",
			},
			[]string{"outcome"},
		),
		sessionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "seclai",
				Subsystem: "stream",
				Name:      "session_duration_seconds",
				Help:      "Run stream session duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"outcome"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seclai",
				Subsystem: "stream",
				Name:      "frames_total",
				Help:      "Total number of decoded stream frames by event name",
			},
			[]string{"event"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.sessions, m.sessionSeconds, m.frames} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// observeSession records a finished stream. outcome is "completed",
// "failed", or a StreamErrorKind name.
func (m *Metrics) observeSession(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) observeFrame(event string) {
	if m == nil {
		return
	}
	switch {
	case event == EventInit, event == EventDone, event == EventError, progressEvents[event]:
	default:
		// Server-chosen names would grow the label set without bound.
		event = "other"
	}
	m.frames.WithLabelValues(event).Inc()
}
