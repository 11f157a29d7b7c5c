package repository

import (
	"context"
	"errors"

	"github.com/casekit/case-engine/internal/domain"
)

// ErrNotFound is returned by lookups that match no ticket.
var ErrNotFound = errors.New("ticket not found")

// TicketRepository encapsulates ticket persistence. No secondary indexes:
// the index is small enough that a linear scan serves every lookup. All
// callers go through the case service, which serializes mutations behind
// a single lock; implementations only need to be individually consistent.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByChannelRef(ctx context.Context, channelRef string) (*domain.Ticket, error)
	// List returns every ticket, open and closed. Closed records are
	// retained indefinitely for cooldown computation.
	List(ctx context.Context) ([]domain.Ticket, error)
}
