package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/events"
)

// auditedEventTypes is every event the engine emits. The audit trail is
// append-only observability: nothing reads it back to drive decisions.
var auditedEventTypes = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketDeduped,
	events.EventTicketSuppressedCooldown,
	events.EventTicketResolved,
	events.EventTicketFollowupSent,
	events.EventTicketAckSent,
	events.EventTicketAckSkipped,
	events.EventTicketClosed,
	events.EventTicketCloseFailed,
	events.EventTicketProvisionFailed,
}

// AuditService records every lifecycle event to the structured log and,
// when Redis is available, appends it to an audit stream for external
// consumers.
type AuditService struct {
	logger *zap.Logger
	rdb    *redis.Client
	stream string
}

// NewAuditService subscribes an audit recorder to the dispatcher. rdb may
// be nil; the log sink alone then carries the trail.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, rdb *redis.Client, stream string) *AuditService {
	svc := &AuditService{logger: logger, rdb: rdb, stream: stream}
	for _, eventType := range auditedEventTypes {
		dispatcher.Subscribe(eventType, svc.record)
	}
	return svc
}

func (s *AuditService) record(ctx context.Context, event events.Event) error {
	s.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))

	if s.rdb == nil || s.stream == "" {
		return nil
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		s.logger.Warn("audit payload marshal failed", zap.Error(err))
		payload = []byte("{}")
	}

	streamCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.rdb.XAdd(streamCtx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"ticket_id":  event.TicketID,
			"at":         event.Timestamp.UTC().Format(time.RFC3339Nano),
			"payload":    string(payload),
		},
	}).Err(); err != nil {
		s.logger.Warn("audit stream append failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}
