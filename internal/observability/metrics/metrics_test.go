package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealtimeMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRealtimeMetrics(reg)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.ObserveDelivery("SessionUpdated", "delivered")
	m.MemberJoined("session")

	var gauge dto.Metric
	require.NoError(t, m.connections.Write(&gauge))
	assert.Equal(t, float64(1), gauge.GetGauge().GetValue())

	var counter dto.Metric
	require.NoError(t, m.deliveries.WithLabelValues("SessionUpdated", "delivered").Write(&counter))
	assert.Equal(t, float64(1), counter.GetCounter().GetValue())
}

func TestSessionMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSessionMetrics(reg)
	m.ObserveMutation("start", "conflict")
	m.ObserveBroadcast(0.02)
	m.ObserveNotification("cancelled", "delivered")

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "clinic_sessions_mutations_total")
	assert.Contains(t, names, "clinic_sessions_broadcast_seconds")
	assert.Contains(t, names, "clinic_sessions_notifications_total")
}

func TestMetricsNilSafe(t *testing.T) {
	var rt *RealtimeMetrics
	rt.ConnectionOpened()
	rt.ConnectionClosed()
	rt.ObserveDelivery("event", "status")
	rt.MemberJoined("session")
	rt.MemberLeft("session")

	var sm *SessionMetrics
	sm.ObserveMutation("op", "ok")
	sm.ObserveBroadcast(0.1)
	sm.ObserveNotification("started", "failed")
}
