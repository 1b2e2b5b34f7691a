package metrics

import (
	"github.com/al002/psmoveclient/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "psmoveclient"

// Metrics holds the request manager and connection counters. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsSent       *prometheus.CounterVec
	RequestsResolved   *prometheus.CounterVec
	ResponsesUnmatched prometheus.Counter
	RequestsPending    prometheus.Gauge
	ConnectionsLost    prometheus.Counter
	EventsReceived     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_sent_total",
				Help:      "Requests handed to the transport",
			},
			[]string{"type"}),

		RequestsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_resolved_total",
				Help:      "Requests resolved, by result code",
			},
			[]string{"result"}),

		ResponsesUnmatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_unmatched_total",
				Help:      "Responses received for an unknown or already resolved request id",
			}),

		RequestsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_pending",
				Help:      "Requests waiting for a response",
			}),

		ConnectionsLost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_lost_total",
				Help:      "Connections to the service lost or torn down",
			}),

		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_received_total",
				Help:      "Unsolicited events received from the service",
			},
			[]string{"type"}),
	}

	reg.MustRegister(
		m.RequestsSent,
		m.RequestsResolved,
		m.ResponsesUnmatched,
		m.RequestsPending,
		m.ConnectionsLost,
		m.EventsReceived,
	)

	return m
}

func (m *Metrics) RequestSent(t protocol.RequestType) {
	if m == nil {
		return
	}
	m.RequestsSent.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) RequestResolved(result protocol.ResultCode) {
	if m == nil {
		return
	}
	m.RequestsResolved.WithLabelValues(result.String()).Inc()
}

func (m *Metrics) ResponseUnmatched() {
	if m == nil {
		return
	}
	m.ResponsesUnmatched.Inc()
}

func (m *Metrics) Pending(n int) {
	if m == nil {
		return
	}
	m.RequestsPending.Set(float64(n))
}

func (m *Metrics) ConnectionLost() {
	if m == nil {
		return
	}
	m.ConnectionsLost.Inc()
}

func (m *Metrics) EventReceived(t protocol.EventType) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(t.String()).Inc()
}
