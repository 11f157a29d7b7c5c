package repository

import (
	"context"
	"sync"

	"github.com/casekit/case-engine/internal/domain"
)

// memoryStore keeps the index in process memory. Used in tests and as a
// throwaway backend for local runs.
type memoryStore struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	order   []string
}

// NewMemoryStore instantiates an empty in-memory repository.
func NewMemoryStore() TicketRepository {
	return &memoryStore{tickets: make(map[string]*domain.Ticket)}
}

func (s *memoryStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; exists {
		return errTicketExists(ticket.ID)
	}
	s.tickets[ticket.ID] = ticket.Clone()
	s.order = append(s.order, ticket.ID)
	return nil
}

func (s *memoryStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[ticket.ID]; !exists {
		return ErrNotFound
	}
	s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket.Clone(), nil
}

func (s *memoryStore) GetByChannelRef(ctx context.Context, channelRef string) (*domain.Ticket, error) {
	if channelRef == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if t := s.tickets[id]; t.ChannelRef == channelRef {
			return t.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) List(ctx context.Context) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ticket, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tickets[id].Clone())
	}
	return out, nil
}
