package hxlive

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	sessions      prometheus.Gauge
	reloads       *prometheus.CounterVec
	sseEvents     prometheus.Counter
	notifications prometheus.Counter
}

// newMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered; they still count.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hxlive",
			Name:      "sessions_active",
			Help:      "Number of live sessions.",
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hxlive",
			Name:      "reloads_total",
			Help:      "Component reload requests by component and status code.",
		}, []string{"component", "code"}),
		sseEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hxlive",
			Name:      "sse_events_total",
			Help:      "Events written to SSE streams, replays included.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hxlive",
			Name:      "state_notifications_total",
			Help:      "Component ids enqueued by state commits and explicit reloads.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.reloads, m.sseEvents, m.notifications)
	}
	return m
}

func (m *metrics) reload(component string, code int) {
	m.reloads.WithLabelValues(component, strconv.Itoa(code)).Inc()
}
