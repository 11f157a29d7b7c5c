// Package transcript renders and archives the full history of a ticket
// surface. Export is the one hard dependency of closing a ticket: when it
// fails, the caller must neither delete the surface nor mark the ticket
// closed.
package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/domain"
	"github.com/casekit/case-engine/internal/platform"
	apperrors "github.com/casekit/case-engine/pkg/util"
)

// Summary is the structured metadata delivered with every transcript.
type Summary struct {
	TicketID     string            `json:"ticket_id"`
	TicketType   domain.TicketType `json:"ticket_type"`
	OwnerID      string            `json:"owner_id"`
	ChannelRef   string            `json:"channel_ref"`
	CreatedAt    time.Time         `json:"created_at"`
	ClosedAt     time.Time         `json:"closed_at"`
	CloseReason  string            `json:"close_reason"`
	ReferenceURL string            `json:"reference_url,omitempty"`
	MessageCount int               `json:"message_count"`
}

// Exporter archives a ticket's history. Implementations return an error
// when the archive cannot be confirmed; the close is then aborted.
type Exporter interface {
	Export(ctx context.Context, ticket *domain.Ticket, closeReason string, closedAt time.Time) error
}

type platformExporter struct {
	client platform.Client
	cases  config.CaseConfig
	logger *zap.Logger
}

// NewExporter builds the gateway-backed exporter.
func NewExporter(client platform.Client, cases config.CaseConfig, logger *zap.Logger) Exporter {
	return &platformExporter{client: client, cases: cases, logger: logger}
}

func (e *platformExporter) Export(ctx context.Context, ticket *domain.Ticket, closeReason string, closedAt time.Time) error {
	archiveRef := e.cases.ArchiveFor(string(ticket.Type))
	if archiveRef == "" {
		return apperrors.NewConfigurationError("no archive destination configured",
			map[string]any{"ticket_type": ticket.Type})
	}

	history, err := e.client.FetchHistory(ctx, ticket.ChannelRef)
	if err != nil {
		return apperrors.NewTransientIO("fetch surface history", err)
	}

	body := Render(ticket, history)
	summary := Summary{
		TicketID:     ticket.ID,
		TicketType:   ticket.Type,
		OwnerID:      ticket.OwnerID,
		ChannelRef:   ticket.ChannelRef,
		CreatedAt:    ticket.CreatedAt,
		ClosedAt:     closedAt,
		CloseReason:  closeReason,
		ReferenceURL: ticket.ReferenceURL,
		MessageCount: len(history),
	}

	filename := fmt.Sprintf("transcript_%s_%s_%s.txt", ticket.Type, ticket.OwnerID, ticket.ID)
	_, err = e.client.SendMessage(ctx, archiveRef, platform.Message{
		Content: fmt.Sprintf("Transcript — %s — %s (%s)", ticket.Type, ticket.OwnerID, closeReason),
		Payload: summary,
		Attachment: &platform.File{
			Name: filename,
			Body: []byte(body),
		},
	})
	if err != nil {
		return apperrors.NewTransientIO("deliver transcript", err)
	}

	e.logger.Info("transcript archived",
		zap.String("ticket_id", ticket.ID),
		zap.String("archive", archiveRef),
		zap.Int("messages", len(history)))
	return nil
}

// Render produces the plain-text transcript: a metadata header followed
// by one line per message in chronological order, with attachment
// references indented beneath their message.
func Render(ticket *domain.Ticket, history []platform.HistoryMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ticket_type=%s\n", ticket.Type)
	fmt.Fprintf(&b, "owner_id=%s\n", ticket.OwnerID)
	fmt.Fprintf(&b, "channel_ref=%s\n", ticket.ChannelRef)
	fmt.Fprintf(&b, "created_at=%s\n", ticket.CreatedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n")

	for _, msg := range history {
		ts := msg.Timestamp.UTC().Format("2006-01-02 15:04")
		author := msg.AuthorName
		if author == "" {
			author = "Unknown"
		}
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n", ts, author, msg.AuthorID, strings.TrimRight(msg.Content, "\n"))
		for _, att := range msg.Attachments {
			fmt.Fprintf(&b, "  [attachment] %s\n", att)
		}
	}
	return b.String()
}
