package events

import (
	"time"

	"github.com/casekit/case-engine/internal/domain"
)

// EventType enumerates audit event identifiers emitted by the engine.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketDeduped            EventType = "ticket_deduped"
	EventTicketSuppressedCooldown EventType = "ticket_suppressed_cooldown"
	EventTicketResolved           EventType = "ticket_resolved"
	EventTicketFollowupSent       EventType = "ticket_followup_sent"
	EventTicketAckSent            EventType = "ticket_ack_sent"
	EventTicketAckSkipped         EventType = "ticket_ack_skipped"
	EventTicketClosed             EventType = "ticket_closed"
	EventTicketCloseFailed        EventType = "ticket_close_failed"
	EventTicketProvisionFailed    EventType = "ticket_provision_failed"
)

// Event represents an audit entry emitted by the case service. The audit
// sink is write-only observability: nothing in the engine reads it back.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketType  domain.TicketType `json:"ticket_type"`
	OwnerID     string            `json:"owner_id"`
	ChannelRef  string            `json:"channel_ref,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

// TicketDedupedPayload payload.
type TicketDedupedPayload struct {
	TicketType  domain.TicketType `json:"ticket_type"`
	OwnerID     string            `json:"owner_id"`
	ChannelRef  string            `json:"channel_ref"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

// TicketSuppressedPayload payload.
type TicketSuppressedPayload struct {
	TicketType      domain.TicketType `json:"ticket_type"`
	OwnerID         string            `json:"owner_id"`
	LastTicketID    string            `json:"last_ticket_id"`
	LastClosedAt    time.Time         `json:"last_closed_at"`
	CooldownSeconds int64             `json:"cooldown_seconds"`
	Fingerprint     string            `json:"fingerprint,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	TicketType    domain.TicketType `json:"ticket_type"`
	OwnerID       string            `json:"owner_id"`
	ResolvedEvent string            `json:"resolved_event"`
	Attempt       int               `json:"attempt"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	TicketType domain.TicketType `json:"ticket_type"`
	OwnerID    string            `json:"owner_id"`
	ChannelRef string            `json:"channel_ref"`
	Reason     string            `json:"reason"`
	Transcript bool              `json:"transcript"`
}

// TicketCloseFailedPayload payload.
type TicketCloseFailedPayload struct {
	TicketType domain.TicketType `json:"ticket_type"`
	ChannelRef string            `json:"channel_ref"`
	Reason     string            `json:"reason"`
	Error      string            `json:"error"`
}
