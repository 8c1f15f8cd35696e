// Package telemetry exports session state changes as prometheus metrics.
package telemetry

import (
	"github.com/jrsteele09/go-signin/session"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "signin"

// SessionMetrics counts committed session states and tracks the current one.
type SessionMetrics struct {
	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	failures    prometheus.Counter
}

// NewSessionMetrics registers the session collectors with reg.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	m := &SessionMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Committed session states by state.",
		}, []string{"state"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise.",
		}, []string{"state"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Sign-in and refresh attempts that ended in the failed state.",
		}),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.state, m.failures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	for _, kind := range session.Kinds {
		m.state.WithLabelValues(string(kind)).Set(0)
	}
	return m, nil
}

// Observe records s. It has the session.Observer signature.
func (m *SessionMetrics) Observe(s session.State) {
	m.transitions.WithLabelValues(string(s.Kind)).Inc()
	for _, kind := range session.Kinds {
		v := 0.0
		if kind == s.Kind {
			v = 1
		}
		m.state.WithLabelValues(string(kind)).Set(v)
	}
	if s.Kind == session.Failed {
		m.failures.Inc()
	}
}
