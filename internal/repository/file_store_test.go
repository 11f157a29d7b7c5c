package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/domain"
)

func newTestFileStore(t *testing.T) (TicketRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickets_index.json")
	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	return store, path
}

func storeTicket(id, channelRef string) *domain.Ticket {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Ticket{
		ID:             id,
		Type:           domain.TicketTypeBilling,
		OwnerID:        "owner-" + id,
		ChannelRef:     channelRef,
		Status:         domain.TicketStatusOpen,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, path := newTestFileStore(t)
	ctx := context.Background()

	ticket := storeTicket("t-1", "chan-1")
	require.NoError(t, store.Create(ctx, ticket))

	loaded, err := store.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.OwnerID, loaded.OwnerID)
	assert.True(t, ticket.CreatedAt.Equal(loaded.CreatedAt))

	byChannel, err := store.GetByChannelRef(ctx, "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", byChannel.ID)

	// A second store over the same file sees the same data.
	reopened, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	list, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestFileStoreCreateRejectsDuplicateID(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, storeTicket("t-1", "chan-1")))
	assert.Error(t, store.Create(ctx, storeTicket("t-1", "chan-2")))
}

func TestFileStoreUpdateMissingTicket(t *testing.T) {
	store, _ := newTestFileStore(t)
	err := store.Update(context.Background(), storeTicket("ghost", ""))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptIndexBackedUpAndReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickets_index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	backups := 0
	for _, e := range entries {
		if e.Name() != "tickets_index.json" {
			backups++
			assert.Contains(t, e.Name(), ".corrupt-")
		}
	}
	assert.Equal(t, 1, backups)
}

func TestFileStoreQuarantinesMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickets_index.json")
	doc := map[string]any{
		"version": 1,
		"tickets": map[string]any{
			"good": map[string]any{
				"ticket_id":        "good",
				"ticket_type":      "billing",
				"owner_id":         "owner-1",
				"status":           "OPEN",
				"created_at":       "2024-05-01T12:00:00Z",
				"last_activity_at": "2024-05-01T12:00:00Z",
			},
			"bad": map[string]any{
				"ticket_id": "bad",
				"status":    "OPEN",
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].ID)

	// The malformed record is preserved in the quarantined section.
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(written, &out))
	var quarantined map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out["quarantined"], &quarantined))
	assert.Contains(t, quarantined, "bad")
}

func TestFileStorePreservesUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickets_index.json")
	doc := map[string]any{
		"version":      1,
		"future_field": "carried",
		"tickets": map[string]any{
			"t-1": map[string]any{
				"ticket_id":        "t-1",
				"ticket_type":      "billing",
				"owner_id":         "owner-1",
				"status":           "OPEN",
				"created_at":       "2024-05-01T12:00:00Z",
				"last_activity_at": "2024-05-01T12:00:00Z",
				"legacy_note":      "keep me",
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	store, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	ticket, err := store.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", ticket.Extra["legacy_note"])

	// Mutate a known field and write back; the unknown field survives.
	ticket.CloseReason = ""
	ticket.LastActivityAt = ticket.LastActivityAt.Add(time.Hour)
	require.NoError(t, store.Update(ctx, ticket))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(written, &out))
	assert.Contains(t, string(out["tickets"]), "legacy_note")
	assert.Contains(t, string(written), "future_field")
}

func TestFileStoreMissingFileTreatedAsEmpty(t *testing.T) {
	store, _ := newTestFileStore(t)
	list, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
