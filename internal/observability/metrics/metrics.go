package metrics

import "github.com/prometheus/client_golang/prometheus"

// RealtimeMetrics exposes gauges/counters for the WebSocket fan-out.
type RealtimeMetrics struct {
	connections  prometheus.Gauge
	deliveries   *prometheus.CounterVec
	groupMembers *prometheus.GaugeVec
}

func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	m := &RealtimeMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Currently open WebSocket connections",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Per-client push attempts by event and outcome",
		}, []string{"event", "status"}),
		groupMembers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "realtime",
			Name:      "group_members",
			Help:      "Group memberships by topic kind",
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.connections, m.deliveries, m.groupMembers)
	return m
}

func (m *RealtimeMetrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *RealtimeMetrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *RealtimeMetrics) ObserveDelivery(event, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(event, status).Inc()
}

func (m *RealtimeMetrics) MemberJoined(kind string) {
	if m == nil {
		return
	}
	m.groupMembers.WithLabelValues(kind).Inc()
}

func (m *RealtimeMetrics) MemberLeft(kind string) {
	if m == nil {
		return
	}
	m.groupMembers.WithLabelValues(kind).Dec()
}

// SessionMetrics exposes counters/histograms for session mutations and broadcasts.
type SessionMetrics struct {
	mutations        *prometheus.CounterVec
	broadcastLatency prometheus.Histogram
	notifications    *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "sessions",
			Name:      "mutations_total",
			Help:      "Session and booking mutations by operation and result",
		}, []string{"op", "result"}),
		broadcastLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "sessions",
			Name:      "broadcast_seconds",
			Help:      "Time to project and publish a session snapshot",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "sessions",
			Name:      "notifications_total",
			Help:      "Per-patient status notifications by kind and outcome",
		}, []string{"kind", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.mutations, m.broadcastLatency, m.notifications)
	return m
}

func (m *SessionMetrics) ObserveMutation(op, result string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

func (m *SessionMetrics) ObserveBroadcast(seconds float64) {
	if m == nil {
		return
	}
	m.broadcastLatency.Observe(seconds)
}

func (m *SessionMetrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}
