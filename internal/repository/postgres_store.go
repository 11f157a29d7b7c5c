package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casekit/case-engine/internal/domain"
)

// postgresStore persists the index in a tickets table. Deployments that
// already run Postgres can prefer it over the file index; semantics are
// identical because the case service serializes all mutations anyway.
type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore instantiates the repository.
func NewPostgresStore(pool *pgxpool.Pool) TicketRepository {
	return &postgresStore{pool: pool}
}

const ticketColumns = `
    id, ticket_type, owner_id, channel_ref, channel_name, fingerprint,
    status, role_ref, reference_url, created_at, last_activity_at,
    closed_at, close_reason, ack_sent_at, ack_skipped_at, resolved_at,
    resolved_event, resolved_followup_sent_at,
    resolved_followup_last_attempt_at, resolved_followup_attempts,
    role_revoked_at`

func (r *postgresStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, ticket_type, owner_id, channel_ref, channel_name,
            fingerprint, status, role_ref, reference_url, created_at,
            last_activity_at, closed_at, close_reason, ack_sent_at, ack_skipped_at,
            resolved_at, resolved_event, resolved_followup_sent_at,
            resolved_followup_last_attempt_at, resolved_followup_attempts,
            role_revoked_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Type,
		ticket.OwnerID,
		ticket.ChannelRef,
		ticket.ChannelName,
		ticket.Fingerprint,
		ticket.Status,
		ticket.RoleRef,
		ticket.ReferenceURL,
		ticket.CreatedAt,
		ticket.LastActivityAt,
		ticket.ClosedAt,
		ticket.CloseReason,
		ticket.AckSentAt,
		ticket.AckSkippedAt,
		ticket.ResolvedAt,
		ticket.ResolvedEvent,
		ticket.ResolvedFollowupSentAt,
		ticket.ResolvedFollowupLastAttemptAt,
		ticket.ResolvedFollowupAttempts,
		ticket.RoleRevokedAt,
	)
	return err
}

func (r *postgresStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET channel_ref=$1, channel_name=$2, fingerprint=$3,
            status=$4, role_ref=$5, reference_url=$6, last_activity_at=$7,
            closed_at=$8, close_reason=$9, ack_sent_at=$10, ack_skipped_at=$11,
            resolved_at=$12, resolved_event=$13, resolved_followup_sent_at=$14,
            resolved_followup_last_attempt_at=$15, resolved_followup_attempts=$16,
            role_revoked_at=$17
        WHERE id=$18`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.ChannelRef,
		ticket.ChannelName,
		ticket.Fingerprint,
		ticket.Status,
		ticket.RoleRef,
		ticket.ReferenceURL,
		ticket.LastActivityAt,
		ticket.ClosedAt,
		ticket.CloseReason,
		ticket.AckSentAt,
		ticket.AckSkippedAt,
		ticket.ResolvedAt,
		ticket.ResolvedEvent,
		ticket.ResolvedFollowupSentAt,
		ticket.ResolvedFollowupLastAttemptAt,
		ticket.ResolvedFollowupAttempts,
		ticket.RoleRevokedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *postgresStore) GetByChannelRef(ctx context.Context, channelRef string) (*domain.Ticket, error) {
	if channelRef == "" {
		return nil, ErrNotFound
	}
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE channel_ref=$1`, channelRef)
}

func (r *postgresStore) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *postgresStore) List(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Type,
		&ticket.OwnerID,
		&ticket.ChannelRef,
		&ticket.ChannelName,
		&ticket.Fingerprint,
		&ticket.Status,
		&ticket.RoleRef,
		&ticket.ReferenceURL,
		&ticket.CreatedAt,
		&ticket.LastActivityAt,
		&ticket.ClosedAt,
		&ticket.CloseReason,
		&ticket.AckSentAt,
		&ticket.AckSkippedAt,
		&ticket.ResolvedAt,
		&ticket.ResolvedEvent,
		&ticket.ResolvedFollowupSentAt,
		&ticket.ResolvedFollowupLastAttemptAt,
		&ticket.ResolvedFollowupAttempts,
		&ticket.RoleRevokedAt,
	)
}
