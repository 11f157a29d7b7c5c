package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/domain"
	"github.com/casekit/case-engine/internal/events"
	"github.com/casekit/case-engine/internal/observability"
	"github.com/casekit/case-engine/internal/platform"
)

// Sweeper drives the periodic lifecycle passes: delayed acknowledgement,
// inactivity auto-close, and resolved-close with follow-up retry. Each
// pass snapshots the index under the service lock, iterates the copy, and
// commits per record; a failure on one ticket never blocks the rest of
// the pass.
type Sweeper struct {
	svc     *CaseService
	cfg     config.SweepConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSweeper constructs the sweeper around a case service.
func NewSweeper(svc *CaseService, cfg config.SweepConfig, logger *zap.Logger, metrics *observability.Metrics) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{svc: svc, cfg: cfg, logger: logger, metrics: metrics}
}

// Start runs all passes on their intervals until ctx is cancelled.
func (w *Sweeper) Start(ctx context.Context) {
	go w.loop(ctx, "ack", w.cfg.AckInterval, w.RunAckPass)
	go w.loop(ctx, "inactivity", w.cfg.InactivityInterval, w.RunInactivityPass)
	go w.loop(ctx, "resolved", w.cfg.ResolvedInterval, w.RunResolvedPass)
}

func (w *Sweeper) loop(ctx context.Context, name string, interval time.Duration, pass func(context.Context) int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep loop stopped", zap.String("pass", name))
			return
		case <-ticker.C:
			processed := pass(ctx)
			w.metrics.RecordSweep(name, processed)
			if processed > 0 {
				w.logger.Info("sweep pass done",
					zap.String("pass", name),
					zap.Int("processed", processed))
			}
		}
	}
}

// RunAckPass posts the delayed acknowledgement into open ticket surfaces
// whose delay has elapsed. Tickets where a human already spoke get a
// skip marker instead of the canned message. Both markers are permanent:
// every ticket is acknowledged or skipped at most once.
func (w *Sweeper) RunAckPass(ctx context.Context) int {
	tickets, err := w.svc.snapshot(ctx)
	if err != nil {
		w.logger.Warn("ack pass snapshot failed", zap.Error(err))
		return 0
	}

	now := w.svc.now()
	processed := 0
	for i := range tickets {
		if ctx.Err() != nil {
			return processed
		}
		t := &tickets[i]
		if !t.IsOpen() {
			continue
		}
		if t.ChannelRef == "" {
			// Surface provisioning never completed. Past the deadline
			// the record is closed so the pair frees up; a retrigger
			// before that re-provisions it.
			if now.Sub(t.CreatedAt) >= w.svc.cfg.ProvisionDeadline && w.svc.closeAbandoned(ctx, t) {
				processed++
			}
			continue
		}
		if t.AckSentAt != nil || t.AckSkippedAt != nil {
			continue
		}
		if now.Sub(t.CreatedAt) < w.svc.cfg.AckDelay {
			continue
		}

		if t.LastActivityAt.After(t.CreatedAt) {
			// Conversation already underway; the canned message would
			// only add noise.
			skippedAt := w.svc.now()
			if w.svc.commit(ctx, t.ID, func(rec *domain.Ticket) bool {
				if !rec.IsOpen() || rec.AckSentAt != nil || rec.AckSkippedAt != nil {
					return false
				}
				rec.AckSkippedAt = &skippedAt
				return true
			}) {
				w.svc.publish(ctx, events.Event{
					Type:     events.EventTicketAckSkipped,
					TicketID: t.ID,
					Payload: events.TicketCreatedPayload{
						TicketType: t.Type,
						OwnerID:    t.OwnerID,
						ChannelRef: t.ChannelRef,
					},
				})
				processed++
			}
			continue
		}

		content := w.svc.cfg.AckTemplateByType[string(t.Type)]
		if content == "" {
			content = "Thanks for reaching out. A staff member will be with you shortly."
		}
		if _, err := w.svc.gateway.SendMessage(ctx, t.ChannelRef, platform.Message{Content: content}); err != nil {
			w.logger.Warn("ack send failed",
				zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		sentAt := w.svc.now()
		if w.svc.commit(ctx, t.ID, func(rec *domain.Ticket) bool {
			if !rec.IsOpen() || rec.AckSentAt != nil {
				return false
			}
			rec.AckSentAt = &sentAt
			return true
		}) {
			w.svc.publish(ctx, events.Event{
				Type:     events.EventTicketAckSent,
				TicketID: t.ID,
				Payload: events.TicketCreatedPayload{
					TicketType: t.Type,
					OwnerID:    t.OwnerID,
					ChannelRef: t.ChannelRef,
				},
			})
			processed++
		}
	}
	return processed
}

// RunInactivityPass closes open tickets of auto-close types that have
// seen no human activity for the configured threshold. The threshold is
// measured from last_activity_at, falling back to created_at.
func (w *Sweeper) RunInactivityPass(ctx context.Context) int {
	tickets, err := w.svc.snapshot(ctx)
	if err != nil {
		w.logger.Warn("inactivity pass snapshot failed", zap.Error(err))
		return 0
	}

	now := w.svc.now()
	processed := 0
	for i := range tickets {
		if ctx.Err() != nil {
			return processed
		}
		t := &tickets[i]
		if !t.IsOpen() || t.ChannelRef == "" {
			continue
		}
		if !w.svc.cfg.AutoCloseEnabled(string(t.Type)) {
			continue
		}
		if now.Sub(t.EffectiveActivityAt()) < w.svc.cfg.InactivityThreshold {
			continue
		}

		closed, err := w.svc.Close(ctx, t.ChannelRef, "inactivity", true)
		if err != nil {
			w.logger.Warn("inactivity close failed; will retry next pass",
				zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if closed {
			processed++
		}
	}
	return processed
}

// RunResolvedPass handles tickets whose underlying issue resolved
// externally. Tickets with an unsent follow-up get a throttled retry;
// tickets whose follow-up went out and drew no human reply within the
// grace window are closed with full transcript.
func (w *Sweeper) RunResolvedPass(ctx context.Context) int {
	tickets, err := w.svc.snapshot(ctx)
	if err != nil {
		w.logger.Warn("resolved pass snapshot failed", zap.Error(err))
		return 0
	}

	now := w.svc.now()
	processed := 0
	for i := range tickets {
		if ctx.Err() != nil {
			return processed
		}
		t := &tickets[i]
		if !t.IsOpen() || t.ResolvedAt == nil {
			continue
		}

		if t.ResolvedFollowupSentAt == nil {
			if w.retryFollowup(ctx, t, now) {
				processed++
			}
			continue
		}

		if now.Sub(*t.ResolvedFollowupSentAt) < w.svc.cfg.ResolvedGrace {
			continue
		}
		if t.LastActivityAt.After(*t.ResolvedFollowupSentAt) {
			// The owner replied after the follow-up; a human decides
			// from here.
			continue
		}

		closed, err := w.svc.Close(ctx, t.ChannelRef, resolvedCloseReason(t.ResolvedEvent), true)
		if err != nil {
			w.logger.Warn("resolved close failed; will retry next pass",
				zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		if closed {
			processed++
		}
	}
	return processed
}

func resolvedCloseReason(event string) string {
	if event == "" {
		return "resolved:ok"
	}
	return "resolved:" + event
}

// retryFollowup re-attempts the resolution follow-up for a ticket whose
// earlier send failed, subject to the retry throttle. Reports whether a
// send went out.
func (w *Sweeper) retryFollowup(ctx context.Context, t *domain.Ticket, now time.Time) bool {
	if last := t.ResolvedFollowupLastAttemptAt; last != nil && now.Sub(*last) < w.svc.cfg.ResolveRetryThrottle {
		return false
	}

	attemptAt := w.svc.now()
	if !w.svc.commit(ctx, t.ID, func(rec *domain.Ticket) bool {
		if !rec.IsOpen() || rec.ResolvedFollowupSentAt != nil {
			return false
		}
		rec.ResolvedFollowupLastAttemptAt = &attemptAt
		rec.ResolvedFollowupAttempts++
		return true
	}) {
		return false
	}
	t.ResolvedFollowupAttempts++
	t.ResolvedFollowupLastAttemptAt = &attemptAt

	if err := w.svc.sendFollowup(ctx, t); err != nil {
		w.logger.Warn("follow-up retry failed",
			zap.String("ticket_id", t.ID),
			zap.Int("attempts", t.ResolvedFollowupAttempts),
			zap.Error(err))
		return false
	}

	sentAt := w.svc.now()
	w.svc.commit(ctx, t.ID, func(rec *domain.Ticket) bool {
		if !rec.IsOpen() || rec.ResolvedFollowupSentAt != nil {
			return false
		}
		rec.ResolvedFollowupSentAt = &sentAt
		return true
	})
	return true
}
