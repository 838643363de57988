package sessions

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
	"github.com/wolfman30/clinic-session-sync/internal/realtime"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Dispatcher pushes the latest snapshot of a session to its group.
type Dispatcher struct {
	projector *Projector
	publisher realtime.Publisher
	logger    *logging.Logger
	metrics   *metrics.SessionMetrics
}

func NewDispatcher(projector *Projector, publisher realtime.Publisher, logger *logging.Logger, m *metrics.SessionMetrics) *Dispatcher {
	if projector == nil || publisher == nil {
		panic("sessions: projector and publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{projector: projector, publisher: publisher, logger: logger, metrics: m}
}

// Broadcast sends SessionUpdated to "session:<id>". A session that no longer
// exists is skipped. Failures are logged and returned but never undo the
// mutation that triggered them.
func (d *Dispatcher) Broadcast(ctx context.Context, sessionID int64) error {
	ctx, span := sessionsTracer.Start(ctx, "sessions.broadcast")
	defer span.End()
	span.SetAttributes(attribute.Int64("clinic.session_id", sessionID))

	started := time.Now()
	defer func() { d.metrics.ObserveBroadcast(time.Since(started).Seconds()) }()

	snap, err := d.projector.Project(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			d.logger.Debug("session gone before broadcast", "session_id", sessionID)
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "project failed")
		d.logger.Error("session snapshot failed", "session_id", sessionID, "error", err)
		return err
	}

	if err := d.publisher.Publish(ctx, realtime.SessionTopic(sessionID), realtime.EventSessionUpdated, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		d.logger.Warn("session broadcast failed", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}
