package domain

import (
	"errors"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for support cases.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "OPEN"
	TicketStatusClosed TicketStatus = "CLOSED"
)

// TicketType enumerates the external signals that open cases. The set is
// extensible: unknown types round-trip through the store untouched.
type TicketType string

const (
	TicketTypeCancellation TicketType = "cancellation"
	TicketTypeBilling      TicketType = "billing"
	TicketTypeFreePass     TicketType = "free_pass"
)

// NormalizeType lowercases and trims a wire-form ticket type.
func NormalizeType(raw string) TicketType {
	return TicketType(strings.ToLower(strings.TrimSpace(raw)))
}

// Validation errors for loaded records.
var (
	ErrTicketMissingID        = errors.New("ticket record missing id")
	ErrTicketMissingType      = errors.New("ticket record missing type")
	ErrTicketMissingOwner     = errors.New("ticket record missing owner_id")
	ErrTicketBadStatus        = errors.New("ticket record has unknown status")
	ErrTicketClosedAtMismatch = errors.New("closed_at must be set exactly when status is CLOSED")
)

// Ticket is the sole persisted entity: one staff-facing case scoped to a
// type and owner. Mutated in place by the case service; never deleted,
// because the cooldown policy scans closed records.
type Ticket struct {
	ID          string       `json:"ticket_id"`
	Type        TicketType   `json:"ticket_type"`
	OwnerID     string       `json:"owner_id"`
	ChannelRef  string       `json:"channel_ref"`
	ChannelName string       `json:"channel_name,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Status      TicketStatus `json:"status"`
	RoleRef     string       `json:"role_ref,omitempty"`

	ReferenceURL string `json:"reference_url,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CloseReason    string     `json:"close_reason,omitempty"`

	AckSentAt    *time.Time `json:"ack_sent_at,omitempty"`
	AckSkippedAt *time.Time `json:"ack_skipped_at,omitempty"`

	ResolvedAt                    *time.Time `json:"resolved_at,omitempty"`
	ResolvedEvent                 string     `json:"resolved_event,omitempty"`
	ResolvedFollowupSentAt        *time.Time `json:"resolved_followup_sent_at,omitempty"`
	ResolvedFollowupLastAttemptAt *time.Time `json:"resolved_followup_last_attempt_at,omitempty"`
	ResolvedFollowupAttempts      int        `json:"resolved_followup_attempts,omitempty"`
	RoleRevokedAt                 *time.Time `json:"role_revoked_at,omitempty"`

	// Extra holds fields this build does not recognize. The store
	// carries them across load/save so older records survive schema
	// evolution.
	Extra map[string]any `json:"-"`
}

// IsOpen reports whether the ticket still accepts transitions.
func (t *Ticket) IsOpen() bool {
	return t != nil && t.Status == TicketStatusOpen
}

// EffectiveActivityAt is the timestamp the inactivity sweep measures
// from: last recorded human activity, falling back to creation time.
func (t *Ticket) EffectiveActivityAt() time.Time {
	if !t.LastActivityAt.IsZero() {
		return t.LastActivityAt
	}
	return t.CreatedAt
}

// Validate reports why a loaded record is unusable. Malformed records are
// quarantined by the store rather than failing the whole load.
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrTicketMissingID
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return ErrTicketMissingType
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrTicketMissingOwner
	}
	switch t.Status {
	case TicketStatusOpen, TicketStatusClosed:
	default:
		return ErrTicketBadStatus
	}
	if (t.Status == TicketStatusClosed) != (t.ClosedAt != nil) {
		return ErrTicketClosedAtMismatch
	}
	return nil
}

// Clone returns a deep copy safe to hand out while the service lock is
// released.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.ClosedAt = cloneTime(t.ClosedAt)
	out.AckSentAt = cloneTime(t.AckSentAt)
	out.AckSkippedAt = cloneTime(t.AckSkippedAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ResolvedFollowupSentAt = cloneTime(t.ResolvedFollowupSentAt)
	out.ResolvedFollowupLastAttemptAt = cloneTime(t.ResolvedFollowupLastAttemptAt)
	out.RoleRevokedAt = cloneTime(t.RoleRevokedAt)
	if t.Extra != nil {
		out.Extra = make(map[string]any, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
