package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Publisher pushes an event to every member of a topic. Implemented by Hub for
// single-instance deployments and by RedisRelay when instances share a bus.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, event string, payload any) error
}

// DeliveryFailure records one client that did not receive a frame.
type DeliveryFailure struct {
	ClientID string
	UserID   int64
	Err      error
}

// DeliveryReport summarises a local fan-out.
type DeliveryReport struct {
	Topic     Topic
	Event     string
	Attempted int
	Delivered int
	Failures  []DeliveryFailure
}

// Hub fans frames out to the local members of a topic.
type Hub struct {
	registry *Registry
	logger   *logging.Logger
	metrics  *metrics.RealtimeMetrics
}

// NewHub creates a hub over registry.
func NewHub(registry *Registry, logger *logging.Logger, m *metrics.RealtimeMetrics) *Hub {
	if registry == nil {
		panic("realtime: registry required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{registry: registry, logger: logger, metrics: m}
}

// Registry exposes the membership registry used by the transport.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish encodes payload once and delivers it to local members.
func (h *Hub) Publish(_ context.Context, topic Topic, event string, payload any) error {
	data, err := Encode(event, payload)
	if err != nil {
		return err
	}
	h.Deliver(topic, event, data)
	return nil
}

// Deliver pushes an already-encoded frame. A failure for one client is logged
// and never stops delivery to the rest.
func (h *Hub) Deliver(topic Topic, event string, data []byte) DeliveryReport {
	members := h.registry.Members(topic)
	report := DeliveryReport{Topic: topic, Event: event, Attempted: len(members)}

	for _, c := range members {
		if err := c.Enqueue(data); err != nil {
			report.Failures = append(report.Failures, DeliveryFailure{ClientID: c.ID, UserID: c.UserID, Err: err})
			status := "closed"
			if errors.Is(err, ErrSendBufferFull) {
				status = "dropped"
			}
			// Closed clients leave every group now rather than when their
			// connection is torn down.
			h.registry.Remove(c)
			h.metrics.ObserveDelivery(event, status)
			h.logger.Warn("realtime: push failed",
				"topic", string(topic),
				"event", event,
				"client_id", c.ID,
				"user_id", c.UserID,
				"error", err,
			)
			continue
		}
		report.Delivered++
		h.metrics.ObserveDelivery(event, "delivered")
	}

	if report.Attempted > 0 {
		h.logger.Debug("realtime: pushed",
			"topic", string(topic),
			"event", event,
			"delivered", report.Delivered,
			"failed", len(report.Failures),
		)
	}
	return report
}

// deliverFrame routes a frame received from another instance.
func (h *Hub) deliverFrame(topic Topic, data []byte) DeliveryReport {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		h.logger.Warn("realtime: dropping malformed relay frame", "topic", string(topic), "error", err)
		return DeliveryReport{Topic: topic}
	}
	return h.Deliver(topic, head.Event, data)
}
