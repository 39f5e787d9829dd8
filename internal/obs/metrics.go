package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kintales_client"

// Metrics holds the counters of the session and sync core. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Renewals     *prometheus.CounterVec
	Replays      prometheus.Counter
	ChannelDials *prometheus.CounterVec
	ChannelState *prometheus.GaugeVec
	RoomEvents   *prometheus.CounterVec
	Rollbacks    *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_renewals_total",
			Help:      "Refresh-token exchanges by outcome.",
		}, []string{"outcome"}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_replays_total",
			Help:      "Requests replayed after an authentication failure.",
		}),
		ChannelDials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_dials_total",
			Help:      "Realtime channel connection attempts by outcome.",
		}, []string{"outcome"}),
		ChannelState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_state",
			Help:      "1 for the current realtime channel state.",
		}, []string{"state"}),
		RoomEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_total",
			Help:      "Room events applied or discarded by kind.",
		}, []string{"kind", "result"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_rollbacks_total",
			Help:      "Optimistic mutations rolled back, by rollback source.",
		}, []string{"source"}),
		gatherer: registry,
	}

	registry.MustRegister(m.Renewals, m.Replays, m.ChannelDials, m.ChannelState, m.RoomEvents, m.Rollbacks)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RenewalFinished(err error) {
	if m == nil {
		return
	}
	m.Renewals.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) RequestReplayed() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

func (m *Metrics) ChannelDialed(err error) {
	if m == nil {
		return
	}
	m.ChannelDials.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ChannelStateChanged(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.ChannelState.WithLabelValues(from).Set(0)
	}
	m.ChannelState.WithLabelValues(to).Set(1)
}

func (m *Metrics) RoomEvent(kind string, applied bool) {
	if m == nil {
		return
	}
	result := "discarded"
	if applied {
		result = "applied"
	}
	m.RoomEvents.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RolledBack(source string) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(source).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
