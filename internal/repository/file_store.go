package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/domain"
)

const indexVersion = 1

// indexDocument is the persisted layout: one JSON document holding every
// ticket keyed by id. Records that fail validation on load are moved to
// the quarantined section, byte-for-byte, instead of failing the load.
type indexDocument struct {
	Version     int                        `json:"version"`
	Tickets     map[string]json.RawMessage `json:"tickets"`
	Quarantined map[string]json.RawMessage `json:"quarantined,omitempty"`

	extra map[string]json.RawMessage
}

// fileStore is the durable repository: a single JSON index written with
// temp-then-rename semantics so a crash mid-write never yields a partial
// file. A single active process is assumed; nothing here guards against a
// second process mutating the same file.
type fileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileStore instantiates the file-backed repository and verifies the
// index is writable up front, so a locked or read-only data directory
// surfaces at startup instead of on the first trigger.
func NewFileStore(path string, logger *zap.Logger) (TicketRepository, error) {
	s := &fileStore{path: path, logger: logger}
	doc := s.load()
	if err := s.save(doc); err != nil {
		return nil, fmt.Errorf("ticket index not writable: %w", err)
	}
	return s, nil
}

func (s *fileStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if _, exists := doc.Tickets[ticket.ID]; exists {
		return errTicketExists(ticket.ID)
	}
	raw, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	doc.Tickets[ticket.ID] = raw
	return s.save(doc)
}

func (s *fileStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	if _, exists := doc.Tickets[ticket.ID]; !exists {
		return ErrNotFound
	}
	raw, err := encodeTicket(ticket)
	if err != nil {
		return err
	}
	doc.Tickets[ticket.ID] = raw
	return s.save(doc)
}

func (s *fileStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	raw, ok := doc.Tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket, err := decodeTicket(raw)
	if err != nil {
		return nil, ErrNotFound
	}
	return ticket, nil
}

func (s *fileStore) GetByChannelRef(ctx context.Context, channelRef string) (*domain.Ticket, error) {
	if channelRef == "" {
		return nil, ErrNotFound
	}
	tickets, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].ChannelRef == channelRef {
			return tickets[i].Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fileStore) List(ctx context.Context) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load()
	out := make([]domain.Ticket, 0, len(doc.Tickets))
	for id, raw := range doc.Tickets {
		ticket, err := decodeTicket(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable ticket record",
				zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

// load reads the index, tolerating a missing file and recovering from a
// corrupt one by moving it aside and continuing with an empty index.
// Records that fail validation are moved to the quarantined section.
func (s *fileStore) load() *indexDocument {
	doc := &indexDocument{
		Version:     indexVersion,
		Tickets:     map[string]json.RawMessage{},
		Quarantined: map[string]json.RawMessage{},
		extra:       map[string]json.RawMessage{},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read ticket index; treating as empty",
				zap.String("path", s.path), zap.Error(err))
		}
		return doc
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		s.quarantineFile(err)
		return doc
	}
	for key, raw := range top {
		switch key {
		case "version":
			_ = json.Unmarshal(raw, &doc.Version)
		case "tickets":
			var tickets map[string]json.RawMessage
			if err := json.Unmarshal(raw, &tickets); err != nil {
				s.quarantineFile(err)
				return &indexDocument{
					Version:     indexVersion,
					Tickets:     map[string]json.RawMessage{},
					Quarantined: map[string]json.RawMessage{},
					extra:       map[string]json.RawMessage{},
				}
			}
			doc.Tickets = tickets
		case "quarantined":
			_ = json.Unmarshal(raw, &doc.Quarantined)
		default:
			doc.extra[key] = raw
		}
	}
	if doc.Tickets == nil {
		doc.Tickets = map[string]json.RawMessage{}
	}
	if doc.Quarantined == nil {
		doc.Quarantined = map[string]json.RawMessage{}
	}
	if doc.Version == 0 {
		doc.Version = indexVersion
	}

	// Validate records; malformed ones are preserved but excluded.
	for id, raw := range doc.Tickets {
		ticket, err := decodeTicket(raw)
		if err == nil {
			err = ticket.Validate()
		}
		if err != nil {
			s.logger.Warn("quarantining malformed ticket record",
				zap.String("ticket_id", id), zap.Error(err))
			doc.Quarantined[id] = raw
			delete(doc.Tickets, id)
		}
	}
	return doc
}

func (s *fileStore) save(doc *indexDocument) error {
	out := map[string]any{
		"version": doc.Version,
		"tickets": doc.Tickets,
	}
	if len(doc.Quarantined) > 0 {
		out["quarantined"] = doc.Quarantined
	}
	for key, raw := range doc.extra {
		out[key] = raw
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}

// quarantineFile moves an unreadable index aside so the engine keeps
// running with an empty index while the bad file stays available for
// inspection.
func (s *fileStore) quarantineFile(cause error) {
	backup := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(s.path, backup); err != nil {
		s.logger.Error("failed to move corrupt ticket index aside",
			zap.String("path", s.path), zap.Error(err))
	}
	s.logger.Error("ticket index unreadable; starting with empty index",
		zap.String("path", s.path),
		zap.String("backup", backup),
		zap.Error(cause))
}

func errTicketExists(id string) error {
	return fmt.Errorf("ticket %s already exists", id)
}

// knownTicketKeys are the JSON keys this build owns on a ticket record.
// Anything else is carried in Ticket.Extra and written back untouched.
var knownTicketKeys = map[string]struct{}{
	"ticket_id": {}, "ticket_type": {}, "owner_id": {}, "channel_ref": {},
	"channel_name": {}, "fingerprint": {}, "status": {}, "role_ref": {},
	"reference_url": {}, "created_at": {}, "last_activity_at": {},
	"closed_at": {}, "close_reason": {}, "ack_sent_at": {}, "ack_skipped_at": {},
	"resolved_at": {}, "resolved_event": {}, "resolved_followup_sent_at": {},
	"resolved_followup_last_attempt_at": {}, "resolved_followup_attempts": {},
	"role_revoked_at": {},
}

func decodeTicket(raw json.RawMessage) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if _, known := knownTicketKeys[key]; known {
			continue
		}
		if ticket.Extra == nil {
			ticket.Extra = map[string]any{}
		}
		ticket.Extra[key] = value
	}
	return &ticket, nil
}

func encodeTicket(ticket *domain.Ticket) (json.RawMessage, error) {
	base, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	if len(ticket.Extra) == 0 {
		return base, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for key, value := range ticket.Extra {
		if _, known := knownTicketKeys[key]; !known {
			fields[key] = value
		}
	}
	return json.Marshal(fields)
}
