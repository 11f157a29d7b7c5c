package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTicket() *Ticket {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Ticket{
		ID:             "t-1",
		Type:           TicketTypeCancellation,
		OwnerID:        "owner-1",
		ChannelRef:     "chan-1",
		Status:         TicketStatusOpen,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TicketTypeBilling, NormalizeType("  Billing "))
	assert.Equal(t, TicketTypeFreePass, NormalizeType("FREE_PASS"))
	assert.Equal(t, TicketType("custom"), NormalizeType("custom"))
}

func TestTicketValidate(t *testing.T) {
	ticket := validTicket()
	require.NoError(t, ticket.Validate())

	missing := validTicket()
	missing.ID = " "
	assert.ErrorIs(t, missing.Validate(), ErrTicketMissingID)

	badStatus := validTicket()
	badStatus.Status = "PENDING"
	assert.ErrorIs(t, badStatus.Validate(), ErrTicketBadStatus)

	closedNoTime := validTicket()
	closedNoTime.Status = TicketStatusClosed
	assert.ErrorIs(t, closedNoTime.Validate(), ErrTicketClosedAtMismatch)

	openWithClosedAt := validTicket()
	at := time.Now()
	openWithClosedAt.ClosedAt = &at
	assert.ErrorIs(t, openWithClosedAt.Validate(), ErrTicketClosedAtMismatch)

	closed := validTicket()
	closed.Status = TicketStatusClosed
	closed.ClosedAt = &at
	assert.NoError(t, closed.Validate())
}

func TestEffectiveActivityAt(t *testing.T) {
	ticket := validTicket()
	assert.Equal(t, ticket.LastActivityAt, ticket.EffectiveActivityAt())

	ticket.LastActivityAt = time.Time{}
	assert.Equal(t, ticket.CreatedAt, ticket.EffectiveActivityAt())
}

func TestCloneIsDeep(t *testing.T) {
	ticket := validTicket()
	resolvedAt := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	ticket.ResolvedAt = &resolvedAt
	ticket.Extra = map[string]any{"legacy_field": "kept"}

	clone := ticket.Clone()
	require.NotNil(t, clone)

	*clone.ResolvedAt = clone.ResolvedAt.Add(time.Hour)
	clone.Extra["legacy_field"] = "mutated"

	assert.Equal(t, resolvedAt, *ticket.ResolvedAt)
	assert.Equal(t, "kept", ticket.Extra["legacy_field"])
}

func TestIsOpen(t *testing.T) {
	var nilTicket *Ticket
	assert.False(t, nilTicket.IsOpen())

	ticket := validTicket()
	assert.True(t, ticket.IsOpen())

	at := time.Now()
	ticket.Status = TicketStatusClosed
	ticket.ClosedAt = &at
	assert.False(t, ticket.IsOpen())
}
