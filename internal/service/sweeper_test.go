package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/domain"
	"github.com/casekit/case-engine/internal/events"
	"github.com/casekit/case-engine/internal/observability"
)

func sweepIntervals() config.SweepConfig {
	return config.SweepConfig{
		AckInterval:        10 * time.Second,
		InactivityInterval: 30 * time.Second,
		ResolvedInterval:   10 * time.Second,
	}
}

func TestAckPassSendsAfterDelay(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "billing", "owner-1", "")
	seeded := len(h.gw.sentTo(ticket.ChannelRef))

	// Before the delay nothing happens.
	assert.Equal(t, 0, sweeper.RunAckPass(context.Background()))

	h.clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, sweeper.RunAckPass(context.Background()))

	msgs := h.gw.sentTo(ticket.ChannelRef)
	require.Len(t, msgs, seeded+1)

	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.AckSentAt)
	assert.Len(t, h.recorder.ofType(events.EventTicketAckSent), 1)

	// The marker is permanent; a second pass is a no-op.
	assert.Equal(t, 0, sweeper.RunAckPass(context.Background()))
	assert.Len(t, h.gw.sentTo(ticket.ChannelRef), seeded+1)
}

func TestAckPassSkipsWhenHumanAlreadySpoke(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "billing", "owner-1", "")
	seeded := len(h.gw.sentTo(ticket.ChannelRef))

	h.clock.Advance(time.Minute)
	require.NoError(t, h.svc.RecordActivity(context.Background(), ticket.ChannelRef, h.clock.Now(), true))

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, sweeper.RunAckPass(context.Background()))

	// No canned message; a skip marker instead.
	assert.Len(t, h.gw.sentTo(ticket.ChannelRef), seeded)
	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AckSentAt)
	assert.NotNil(t, stored.AckSkippedAt)
	assert.Len(t, h.recorder.ofType(events.EventTicketAckSkipped), 1)
}

func TestAckPassRetriesOnSendFailure(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "billing", "owner-1", "")
	h.clock.Advance(6 * time.Minute)

	h.gw.sendErr = errors.New("gateway down")
	assert.Equal(t, 0, sweeper.RunAckPass(context.Background()))
	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AckSentAt)

	h.gw.sendErr = nil
	assert.Equal(t, 1, sweeper.RunAckPass(context.Background()))
	stored, err = h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.AckSentAt)
}

func TestAckPassClosesAbandonedProvisioning(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	now := h.clock.Now()
	orphan := &domain.Ticket{
		ID:             "orphan-1",
		Type:           domain.TicketTypeBilling,
		OwnerID:        "owner-1",
		Status:         domain.TicketStatusOpen,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	require.NoError(t, h.repo.Create(context.Background(), orphan))

	// Inside the provisioning deadline the record is left alone so a
	// retrigger can still finish it.
	h.clock.Advance(6 * time.Minute)
	assert.Equal(t, 0, sweeper.RunAckPass(context.Background()))

	h.clock.Advance(5 * time.Minute)
	assert.Equal(t, 1, sweeper.RunAckPass(context.Background()))

	stored, err := h.repo.GetByID(context.Background(), "orphan-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.Equal(t, "surface_create_failed", stored.CloseReason)
	require.NotNil(t, stored.ClosedAt)
	assert.Len(t, h.recorder.ofType(events.EventTicketClosed), 1)
}

func TestInactivityPassClosesOnlyAutoCloseTypes(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	freePass := h.open(t, "free_pass", "owner-1", "")
	billing := h.open(t, "billing", "owner-2", "")

	h.clock.Advance(25 * time.Hour)
	assert.Equal(t, 1, sweeper.RunInactivityPass(context.Background()))

	closed, err := h.repo.GetByID(context.Background(), freePass.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, closed.Status)
	assert.Equal(t, "inactivity", closed.CloseReason)

	kept, err := h.repo.GetByID(context.Background(), billing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, kept.Status)
}

func TestInactivityPassMeasuresFromLastActivity(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "free_pass", "owner-1", "")

	h.clock.Advance(20 * time.Hour)
	require.NoError(t, h.svc.RecordActivity(context.Background(), ticket.ChannelRef, h.clock.Now(), true))

	// 23h after creation but only 3h after the last human message.
	h.clock.Advance(3 * time.Hour)
	assert.Equal(t, 0, sweeper.RunInactivityPass(context.Background()))

	h.clock.Advance(22 * time.Hour)
	assert.Equal(t, 1, sweeper.RunInactivityPass(context.Background()))
}

func TestInactivityPassKeepsTicketOnExportFailure(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "free_pass", "owner-1", "")
	h.clock.Advance(25 * time.Hour)

	h.exporter.err = errors.New("archive unreachable")
	assert.Equal(t, 0, sweeper.RunInactivityPass(context.Background()))
	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	h.exporter.err = nil
	assert.Equal(t, 1, sweeper.RunInactivityPass(context.Background()))
}

func TestResolvedCloseReason(t *testing.T) {
	assert.Equal(t, "resolved:ok", resolvedCloseReason(""))
	assert.Equal(t, "resolved:renewed", resolvedCloseReason("renewed"))
}

func TestResolvedPassClosesAfterGrace(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "cancellation", "owner-1", "")
	_, err := h.svc.Resolve(context.Background(),
		domain.TicketTypeCancellation, "owner-1", "renewed", h.clock.Now())
	require.NoError(t, err)

	// Inside the grace window nothing closes.
	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, sweeper.RunResolvedPass(context.Background()))

	h.clock.Advance(21 * time.Minute)
	assert.Equal(t, 1, sweeper.RunResolvedPass(context.Background()))

	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, stored.Status)
	assert.Equal(t, "resolved:renewed", stored.CloseReason)
	assert.Equal(t, []string{ticket.ID}, h.exporter.exported)
}

func TestResolvedPassHoldsWhenOwnerReplied(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "cancellation", "owner-1", "")
	_, err := h.svc.Resolve(context.Background(),
		domain.TicketTypeCancellation, "owner-1", "renewed", h.clock.Now())
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	require.NoError(t, h.svc.RecordActivity(context.Background(), ticket.ChannelRef, h.clock.Now(), true))

	h.clock.Advance(time.Hour)
	assert.Equal(t, 0, sweeper.RunResolvedPass(context.Background()))

	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}

func TestResolvedPassRetriesFollowup(t *testing.T) {
	h := newHarness(t)
	sweeper := NewSweeper(h.svc, sweepIntervals(), zap.NewNop(), observability.NewMetrics())

	ticket := h.open(t, "cancellation", "owner-1", "")
	h.gw.sendErr = errors.New("send failed")
	_, err := h.svc.Resolve(context.Background(),
		domain.TicketTypeCancellation, "owner-1", "renewed", h.clock.Now())
	require.NoError(t, err)

	// Throttled: the pass right after the failed attempt does nothing.
	assert.Equal(t, 0, sweeper.RunResolvedPass(context.Background()))

	h.gw.sendErr = nil
	h.clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, sweeper.RunResolvedPass(context.Background()))

	stored, err := h.repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResolvedFollowupSentAt)
	assert.Equal(t, 2, stored.ResolvedFollowupAttempts)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
}
