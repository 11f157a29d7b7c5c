package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casekit/case-engine/internal/config"
	"github.com/casekit/case-engine/internal/domain"
	"github.com/casekit/case-engine/internal/events"
	"github.com/casekit/case-engine/internal/observability"
	"github.com/casekit/case-engine/internal/platform"
	"github.com/casekit/case-engine/internal/repository"
	"github.com/casekit/case-engine/internal/transcript"
	apperrors "github.com/casekit/case-engine/pkg/util"
)

// OpenOutcome reports what OpenOrUpdate did with a trigger.
type OpenOutcome string

const (
	OutcomeCreated    OpenOutcome = "created"
	OutcomeDeduped    OpenOutcome = "deduped"
	OutcomeSuppressed OpenOutcome = "suppressed"
)

// SeedContent carries the initial message posted into a freshly created
// ticket surface, plus presentation metadata the engine stores verbatim.
type SeedContent struct {
	Content      string
	Payload      any
	OwnerName    string
	ReferenceURL string
}

// CaseService is the ticket lifecycle orchestrator and dedup & cooldown
// policy. One mutex serializes every read-modify-write over the store.
// The lock is never held across a gateway call: each operation copies
// candidate state out, releases the lock, performs I/O, then re-acquires
// the lock to commit per-record updates.
type CaseService struct {
	mu         sync.Mutex
	repo       repository.TicketRepository
	gateway    platform.Client
	exporter   transcript.Exporter
	dispatcher events.Dispatcher
	cfg        config.CaseConfig
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// CaseDependencies bundles collaborators for the case service.
type CaseDependencies struct {
	Repo       repository.TicketRepository
	Gateway    platform.Client
	Exporter   transcript.Exporter
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// NewCaseService constructs the service.
func NewCaseService(cfg config.CaseConfig, deps CaseDependencies) *CaseService {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseService{
		repo:       deps.Repo,
		gateway:    deps.Gateway,
		exporter:   deps.Exporter,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     logger,
		metrics:    deps.Metrics,
		now:        now,
	}
}

// OpenOrUpdate is the single entry point for external triggers. It either
// returns an existing OPEN ticket (dedup hit), a suppression outcome
// (recently closed ticket still in cooldown), or a freshly created and
// provisioned ticket.
func (s *CaseService) OpenOrUpdate(ctx context.Context, ticketType domain.TicketType, ownerID, fingerprint string, seed SeedContent) (*domain.Ticket, OpenOutcome, error) {
	ticketType = domain.NormalizeType(string(ticketType))
	ownerID = strings.TrimSpace(ownerID)
	fingerprint = strings.TrimSpace(fingerprint)
	if ticketType == "" || ownerID == "" {
		return nil, "", apperrors.NewValidationError("ticket type and owner are required", nil)
	}

	category := s.cfg.CategoryByType[string(ticketType)]
	if category == "" {
		s.logger.Warn("no surface category configured; skipping trigger",
			zap.String("ticket_type", string(ticketType)))
		return nil, "", apperrors.NewConfigurationError("no surface category configured",
			map[string]any{"ticket_type": ticketType})
	}

	s.mu.Lock()
	existing, err := s.findOpenLocked(ctx, ticketType, ownerID, fingerprint)
	if err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	// The open-ticket scan is unconditional: at most one OPEN ticket may
	// exist per (type, owner) regardless of the suppression toggle.
	if existing != nil {
		if seed.ReferenceURL != "" && seed.ReferenceURL != existing.ReferenceURL {
			existing.ReferenceURL = seed.ReferenceURL
			if err := s.repo.Update(ctx, existing); err != nil {
				s.logger.Warn("failed to persist reference url on dedup", zap.Error(err))
			}
		}
		result := existing.Clone()
		s.mu.Unlock()

		// Re-apply the idempotent side effect outside the lock; a dedup
		// hit must not reset last_activity_at. A record that never got
		// its surface (crash between create and commit) is finished
		// here instead of being returned surfaceless forever.
		if result.ChannelRef == "" {
			provisioned, err := s.provisionSurface(ctx, result, seed)
			if err != nil {
				s.metrics.RecordOperation("open_or_update", "provision_failed")
				return nil, "", err
			}
			result = provisioned
		} else {
			s.ensureRoleGranted(ctx, result)
		}
		s.publish(ctx, events.Event{
			Type:     events.EventTicketDeduped,
			TicketID: result.ID,
			Payload: events.TicketDedupedPayload{
				TicketType:  result.Type,
				OwnerID:     result.OwnerID,
				ChannelRef:  result.ChannelRef,
				Fingerprint: fingerprint,
			},
		})
		s.metrics.RecordOperation("open_or_update", string(OutcomeDeduped))
		return result, OutcomeDeduped, nil
	}

	if suppressed, payload := s.cooldownHitLocked(ctx, ticketType, ownerID, fingerprint); suppressed {
		s.mu.Unlock()
		s.publish(ctx, events.Event{
			Type:     events.EventTicketSuppressedCooldown,
			TicketID: payload.LastTicketID,
			Payload:  payload,
		})
		s.metrics.RecordOperation("open_or_update", string(OutcomeSuppressed))
		return nil, OutcomeSuppressed, nil
	}

	// Persist the record OPEN before provisioning the surface, so the
	// uniqueness invariants hold without keeping the lock across I/O.
	now := s.now()
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		Type:           ticketType,
		OwnerID:        ownerID,
		Fingerprint:    fingerprint,
		Status:         domain.TicketStatusOpen,
		RoleRef:        s.cfg.RoleByType[string(ticketType)],
		ReferenceURL:   seed.ReferenceURL,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		s.mu.Unlock()
		return nil, "", apperrors.MapError(err)
	}
	s.mu.Unlock()

	provisioned, err := s.provisionSurface(ctx, ticket, seed)
	if err != nil {
		s.metrics.RecordOperation("open_or_update", "provision_failed")
		return nil, "", err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: provisioned.ID,
		Payload: events.TicketCreatedPayload{
			TicketType:  provisioned.Type,
			OwnerID:     provisioned.OwnerID,
			ChannelRef:  provisioned.ChannelRef,
			Fingerprint: provisioned.Fingerprint,
		},
	})
	s.metrics.RecordOperation("open_or_update", string(OutcomeCreated))
	return provisioned, OutcomeCreated, nil
}

// RecordActivity annotates human activity on an open ticket surface.
// Self-generated and system messages never update last_activity_at, so
// the inactivity sweep cannot be starved by the engine's own output.
func (s *CaseService) RecordActivity(ctx context.Context, channelRef string, at time.Time, isHuman bool) error {
	if !isHuman || channelRef == "" {
		return nil
	}
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.repo.GetByChannelRef(ctx, channelRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if !ticket.IsOpen() {
		return nil
	}
	ticket.LastActivityAt = at
	if err := s.repo.Update(ctx, ticket); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Resolve marks the open (type, owner) ticket resolved and attempts the
// resolution follow-up. resolved_at is set exactly once; the follow-up
// "sent" marker is only set after a successful send, so a transient
// outage is retried by the resolved sweep instead of losing the
// notification. Returns true when a matching open ticket was handled.
func (s *CaseService) Resolve(ctx context.Context, ticketType domain.TicketType, ownerID, resolvedEvent string, at time.Time) (bool, error) {
	ticketType = domain.NormalizeType(string(ticketType))
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	ticket, err := s.findOpenLocked(ctx, ticketType, strings.TrimSpace(ownerID), "")
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	if ticket == nil {
		s.mu.Unlock()
		return false, nil
	}
	if ticket.ResolvedFollowupSentAt != nil {
		s.mu.Unlock()
		return true, nil
	}
	if last := ticket.ResolvedFollowupLastAttemptAt; last != nil && s.now().Sub(*last) < s.cfg.ResolveRetryThrottle {
		s.mu.Unlock()
		return true, nil
	}

	if ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &at
	}
	ticket.ResolvedEvent = clip(resolvedEvent, 200)
	attemptAt := s.now()
	ticket.ResolvedFollowupLastAttemptAt = &attemptAt
	ticket.ResolvedFollowupAttempts++
	if err := s.repo.Update(ctx, ticket); err != nil {
		s.mu.Unlock()
		return false, apperrors.MapError(err)
	}
	snapshot := ticket.Clone()
	s.mu.Unlock()

	s.ensureRoleRevoked(ctx, snapshot)

	sendErr := s.sendFollowup(ctx, snapshot)
	if sendErr != nil {
		s.logger.Warn("resolution follow-up send failed; sweep will retry",
			zap.String("ticket_id", snapshot.ID), zap.Error(sendErr))
		s.metrics.RecordOperation("resolve", "followup_failed")
		return true, nil
	}

	sentAt := s.now()
	s.commit(ctx, snapshot.ID, func(t *domain.Ticket) bool {
		if !t.IsOpen() || t.ResolvedFollowupSentAt != nil {
			return false
		}
		t.ResolvedFollowupSentAt = &sentAt
		return true
	})

	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: snapshot.ID,
		Payload: events.TicketResolvedPayload{
			TicketType:    snapshot.Type,
			OwnerID:       snapshot.OwnerID,
			ResolvedEvent: snapshot.ResolvedEvent,
			Attempt:       snapshot.ResolvedFollowupAttempts,
		},
	})
	s.metrics.RecordOperation("resolve", "followup_sent")
	return true, nil
}

// Close transitions the ticket on the given surface to CLOSED. When a
// transcript is requested it must be archived before the status flips and
// before the surface is destroyed; an export failure aborts the close and
// leaves the ticket OPEN for a later retry. A surface that no longer
// exists closes automatically with reason "surface_missing" and no
// transcript.
func (s *CaseService) Close(ctx context.Context, channelRef, reason string, doTranscript bool) (bool, error) {
	s.mu.Lock()
	ticket, err := s.repo.GetByChannelRef(ctx, channelRef)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, repository.ErrNotFound) {
			return false, apperrors.NewNotFound("ticket", map[string]any{"channel_ref": channelRef})
		}
		return false, apperrors.MapError(err)
	}
	if !ticket.IsOpen() {
		s.mu.Unlock()
		return false, apperrors.NewConcurrencyViolation("ticket already closed",
			map[string]any{"ticket_id": ticket.ID})
	}
	snapshot := ticket.Clone()
	s.mu.Unlock()

	surfaceMissing := false
	if doTranscript {
		closedAt := s.now()
		if err := s.exporter.Export(ctx, snapshot, reason, closedAt); err != nil {
			if errors.Is(err, platform.ErrSurfaceNotFound) {
				surfaceMissing = true
				reason = "surface_missing"
			} else {
				s.publish(ctx, events.Event{
					Type:     events.EventTicketCloseFailed,
					TicketID: snapshot.ID,
					Payload: events.TicketCloseFailedPayload{
						TicketType: snapshot.Type,
						ChannelRef: snapshot.ChannelRef,
						Reason:     reason,
						Error:      err.Error(),
					},
				})
				s.metrics.RecordOperation("close", "transcript_failed")
				s.logger.Error("transcript failed; refusing to close ticket",
					zap.String("ticket_id", snapshot.ID), zap.Error(err))
				return false, err
			}
		}
	}

	closedAt := s.now()
	committed := s.commit(ctx, snapshot.ID, func(t *domain.Ticket) bool {
		if !t.IsOpen() {
			return false
		}
		t.Status = domain.TicketStatusClosed
		t.CloseReason = reason
		t.ClosedAt = &closedAt
		return true
	})
	if !committed {
		return false, apperrors.NewConcurrencyViolation("ticket already closed",
			map[string]any{"ticket_id": snapshot.ID})
	}

	s.ensureRoleRevoked(ctx, snapshot)

	if !surfaceMissing {
		if err := s.gateway.DeleteSurface(ctx, snapshot.ChannelRef); err != nil && !errors.Is(err, platform.ErrSurfaceNotFound) {
			s.logger.Warn("failed to delete ticket surface",
				zap.String("ticket_id", snapshot.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: snapshot.ID,
		Payload: events.TicketClosedPayload{
			TicketType: snapshot.Type,
			OwnerID:    snapshot.OwnerID,
			ChannelRef: snapshot.ChannelRef,
			Reason:     reason,
			Transcript: doTranscript && !surfaceMissing,
		},
	})
	s.metrics.RecordOperation("close", "closed")
	return true, nil
}

// IsOpenTicketSurface reports whether the surface belongs to an OPEN
// ticket. Used by the platform layer to decide whether to feed messages
// into RecordActivity.
func (s *CaseService) IsOpenTicketSurface(ctx context.Context, channelRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.repo.GetByChannelRef(ctx, channelRef)
	return err == nil && ticket.IsOpen()
}

// HasOpenTicket reports whether an OPEN ticket exists for (type, owner).
func (s *CaseService) HasOpenTicket(ctx context.Context, ticketType domain.TicketType, ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.findOpenLocked(ctx, domain.NormalizeType(string(ticketType)), strings.TrimSpace(ownerID), "")
	return err == nil && ticket != nil
}

// GetByChannelRef returns a copy of the ticket on a surface, open or
// closed.
func (s *CaseService) GetByChannelRef(ctx context.Context, channelRef string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.repo.GetByChannelRef(ctx, channelRef)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"channel_ref": channelRef})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// findOpenLocked scans OPEN tickets for the canonical (type, owner)
// identity first; a fingerprint match is the secondary identity. Caller
// holds the lock.
func (s *CaseService) findOpenLocked(ctx context.Context, ticketType domain.TicketType, ownerID, fingerprint string) (*domain.Ticket, error) {
	tickets, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var fingerprintMatch *domain.Ticket
	for i := range tickets {
		t := &tickets[i]
		if !t.IsOpen() || t.Type != ticketType {
			continue
		}
		if t.OwnerID == ownerID {
			return t.Clone(), nil
		}
		if fingerprint != "" && t.Fingerprint == fingerprint && fingerprintMatch == nil {
			fingerprintMatch = t
		}
	}
	if fingerprintMatch != nil {
		return fingerprintMatch.Clone(), nil
	}
	return nil, nil
}

// cooldownHitLocked scans CLOSED tickets for the most recent close
// matching (type, owner) or fingerprint and reports whether the cooldown
// window is still running. Caller holds the lock.
func (s *CaseService) cooldownHitLocked(ctx context.Context, ticketType domain.TicketType, ownerID, fingerprint string) (bool, events.TicketSuppressedPayload) {
	if !s.cfg.DedupEnabled {
		return false, events.TicketSuppressedPayload{}
	}
	cooldown := s.cfg.CooldownFor(string(ticketType))
	if cooldown <= 0 {
		return false, events.TicketSuppressedPayload{}
	}

	tickets, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn("cooldown scan failed", zap.Error(err))
		return false, events.TicketSuppressedPayload{}
	}

	var latest *domain.Ticket
	for i := range tickets {
		t := &tickets[i]
		if t.Type != ticketType || t.ClosedAt == nil {
			continue
		}
		if t.OwnerID != ownerID && !(fingerprint != "" && t.Fingerprint == fingerprint) {
			continue
		}
		if latest == nil || t.ClosedAt.After(*latest.ClosedAt) {
			latest = t
		}
	}
	if latest == nil || s.now().Sub(*latest.ClosedAt) >= cooldown {
		return false, events.TicketSuppressedPayload{}
	}
	return true, events.TicketSuppressedPayload{
		TicketType:      ticketType,
		OwnerID:         ownerID,
		LastTicketID:    latest.ID,
		LastClosedAt:    *latest.ClosedAt,
		CooldownSeconds: int64(cooldown / time.Second),
		Fingerprint:     fingerprint,
	}
}

// provisionSurface creates the conversation surface, posts the seed
// message, grants the ticket role, and commits the surface refs. A failed
// surface creation closes the record so the owner is not left with an
// unusable OPEN ticket blocking future triggers.
func (s *CaseService) provisionSurface(ctx context.Context, ticket *domain.Ticket, seed SeedContent) (*domain.Ticket, error) {
	spec := platform.SurfaceSpec{
		Category:    s.cfg.CategoryByType[string(ticket.Type)],
		Name:        surfaceName(ticket.Type, seed.OwnerName, ticket.OwnerID),
		Topic:       surfaceTopic(ticket),
		ViewerRoles: viewerRoles(s.cfg.StaffRoleRef),
		OwnerID:     ticket.OwnerID,
	}
	surfaceRef, err := s.gateway.CreateSurface(ctx, spec)
	if err != nil {
		closedAt := s.now()
		s.commit(ctx, ticket.ID, func(t *domain.Ticket) bool {
			if !t.IsOpen() {
				return false
			}
			t.Status = domain.TicketStatusClosed
			t.CloseReason = "surface_create_failed"
			t.ClosedAt = &closedAt
			return true
		})
		s.publish(ctx, events.Event{
			Type:     events.EventTicketProvisionFailed,
			TicketID: ticket.ID,
			Payload: events.TicketCloseFailedPayload{
				TicketType: ticket.Type,
				Reason:     "surface_create_failed",
				Error:      err.Error(),
			},
		})
		s.logger.Error("failed to create ticket surface",
			zap.String("ticket_type", string(ticket.Type)),
			zap.String("owner_id", ticket.OwnerID),
			zap.Error(err))
		return nil, apperrors.NewTransientIO("create ticket surface", err)
	}

	if seed.Content != "" || seed.Payload != nil {
		if _, err := s.gateway.SendMessage(ctx, surfaceRef, platform.Message{
			Content: seed.Content,
			Payload: seed.Payload,
		}); err != nil {
			s.logger.Warn("failed to post seed message",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.commit(ctx, ticket.ID, func(t *domain.Ticket) bool {
		if !t.IsOpen() {
			return false
		}
		t.ChannelRef = surfaceRef
		t.ChannelName = spec.Name
		return true
	})
	ticket.ChannelRef = surfaceRef
	ticket.ChannelName = spec.Name

	s.ensureRoleGranted(ctx, ticket)
	return ticket.Clone(), nil
}

// commit re-acquires the lock, reloads the record, applies mutate, and
// persists when mutate reports a change.
func (s *CaseService) commit(ctx context.Context, ticketID string, mutate func(*domain.Ticket) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("commit reload failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return false
	}
	if !mutate(ticket) {
		return false
	}
	if err := s.repo.Update(ctx, ticket); err != nil {
		s.logger.Error("commit persist failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return false
	}
	return true
}

// closeAbandoned closes a record that never got its surface. There is
// nothing to export, delete, or notify; the close frees the (type, owner)
// pair for a fresh trigger.
func (s *CaseService) closeAbandoned(ctx context.Context, ticket *domain.Ticket) bool {
	closedAt := s.now()
	committed := s.commit(ctx, ticket.ID, func(t *domain.Ticket) bool {
		if !t.IsOpen() || t.ChannelRef != "" {
			return false
		}
		t.Status = domain.TicketStatusClosed
		t.CloseReason = "surface_create_failed"
		t.ClosedAt = &closedAt
		return true
	})
	if committed {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketClosed,
			TicketID: ticket.ID,
			Payload: events.TicketClosedPayload{
				TicketType: ticket.Type,
				OwnerID:    ticket.OwnerID,
				Reason:     "surface_create_failed",
				Transcript: false,
			},
		})
		s.metrics.RecordOperation("close", "abandoned")
	}
	return committed
}

// ensureRoleGranted re-applies the per-type side-effect role. Idempotent
// from the gateway's perspective; failures are logged and retried on the
// next dedup hit.
func (s *CaseService) ensureRoleGranted(ctx context.Context, ticket *domain.Ticket) {
	if ticket.RoleRef == "" {
		return
	}
	if err := s.gateway.GrantRole(ctx, ticket.OwnerID, ticket.RoleRef); err != nil {
		s.logger.Warn("failed to grant ticket role",
			zap.String("ticket_id", ticket.ID),
			zap.String("role_ref", ticket.RoleRef),
			zap.Error(err))
	}
}

// ensureRoleRevoked removes the side-effect role once. The revoked marker
// is only committed after a successful revoke, so a transient failure is
// retried by the next resolve attempt or close.
func (s *CaseService) ensureRoleRevoked(ctx context.Context, ticket *domain.Ticket) {
	if ticket.RoleRef == "" || ticket.RoleRevokedAt != nil {
		return
	}
	if err := s.gateway.RevokeRole(ctx, ticket.OwnerID, ticket.RoleRef); err != nil {
		s.logger.Warn("failed to revoke ticket role",
			zap.String("ticket_id", ticket.ID),
			zap.String("role_ref", ticket.RoleRef),
			zap.Error(err))
		return
	}
	revokedAt := s.now()
	s.commit(ctx, ticket.ID, func(t *domain.Ticket) bool {
		if t.RoleRevokedAt != nil {
			return false
		}
		t.RoleRevokedAt = &revokedAt
		return true
	})
	ticket.RoleRevokedAt = &revokedAt
}

func (s *CaseService) sendFollowup(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ChannelRef == "" {
		return apperrors.NewTransientIO("ticket surface not provisioned", nil)
	}
	content := s.cfg.FollowupTemplateByType[string(ticket.Type)]
	if content == "" {
		content = "Update: this ticket appears resolved. If you still have concerns, reply here — otherwise Support can close."
	}
	_, err := s.gateway.SendMessage(ctx, ticket.ChannelRef, platform.Message{
		Content: content,
		Payload: map[string]any{
			"kind":           "resolution_followup",
			"resolved_event": ticket.ResolvedEvent,
		},
	})
	if err != nil {
		return apperrors.NewTransientIO("send resolution follow-up", err)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketFollowupSent,
		TicketID: ticket.ID,
		Payload: events.TicketResolvedPayload{
			TicketType:    ticket.Type,
			OwnerID:       ticket.OwnerID,
			ResolvedEvent: ticket.ResolvedEvent,
			Attempt:       ticket.ResolvedFollowupAttempts,
		},
	})
	return nil
}

// snapshot copies the full index out under the lock for sweep passes.
func (s *CaseService) snapshot(ctx context.Context) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.List(ctx)
}

func (s *CaseService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func surfaceName(ticketType domain.TicketType, ownerName, ownerID string) string {
	prefix := "ticket"
	switch ticketType {
	case domain.TicketTypeCancellation:
		prefix = "cancel"
	case domain.TicketTypeBilling:
		prefix = "billing"
	case domain.TicketTypeFreePass:
		prefix = "freepass"
	}
	name := slug(ownerName, 20)
	if name == "" {
		name = "user"
	}
	suffix := ownerID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return prefix + "-" + name + "-" + suffix
}

func surfaceTopic(ticket *domain.Ticket) string {
	var b strings.Builder
	b.WriteString("support_ticket\n")
	b.WriteString("ticket_id=" + ticket.ID + "\n")
	b.WriteString("ticket_type=" + string(ticket.Type) + "\n")
	b.WriteString("owner_id=" + ticket.OwnerID)
	if ticket.Fingerprint != "" {
		b.WriteString("\nfingerprint=" + ticket.Fingerprint)
	}
	return b.String()
}

func viewerRoles(staffRole string) []string {
	if staffRole == "" {
		return nil
	}
	return []string{staffRole}
}

func slug(raw string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

func clip(raw string, max int) string {
	if len(raw) <= max {
		return raw
	}
	return raw[:max]
}
