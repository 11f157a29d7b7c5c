package dto

import (
	"time"

	"github.com/casekit/case-engine/internal/domain"
)

// OpenTicketRequest is the external trigger payload.
type OpenTicketRequest struct {
	TicketType   string         `json:"ticket_type"`
	OwnerID      string         `json:"owner_id"`
	OwnerName    string         `json:"owner_name,omitempty"`
	Fingerprint  string         `json:"fingerprint,omitempty"`
	ReferenceURL string         `json:"reference_url,omitempty"`
	SeedContent  string         `json:"seed_content,omitempty"`
	SeedPayload  map[string]any `json:"seed_payload,omitempty"`
}

// ActivityRequest reports a message seen on a ticket surface.
type ActivityRequest struct {
	ChannelRef string     `json:"channel_ref"`
	At         *time.Time `json:"at,omitempty"`
	IsHuman    bool       `json:"is_human"`
}

// ResolveRequest reports an external resolution signal.
type ResolveRequest struct {
	TicketType    string     `json:"ticket_type"`
	OwnerID       string     `json:"owner_id"`
	ResolvedEvent string     `json:"resolved_event,omitempty"`
	At            *time.Time `json:"at,omitempty"`
}

// CloseRequest asks the engine to close the ticket on a surface.
type CloseRequest struct {
	ChannelRef string `json:"channel_ref"`
	Reason     string `json:"reason"`
	// Transcript defaults to true; only explicit false skips the export.
	Transcript *bool `json:"transcript,omitempty"`
}

// OpenTicketResponse wraps the outcome of a trigger.
type OpenTicketResponse struct {
	Outcome string         `json:"outcome"`
	Ticket  *domain.Ticket `json:"ticket,omitempty"`
}

// StatusResponse is a generic boolean result.
type StatusResponse struct {
	Handled bool `json:"handled"`
}
