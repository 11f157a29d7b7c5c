package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/casekit/case-engine/internal/api/dto"
	"github.com/casekit/case-engine/internal/domain"
	"github.com/casekit/case-engine/internal/service"
	apperrors "github.com/casekit/case-engine/pkg/util"
)

// CasesHandler exposes the trigger API over HTTP.
type CasesHandler struct {
	svc *service.CaseService
}

// NewCasesHandler constructs the handler.
func NewCasesHandler(svc *service.CaseService) *CasesHandler {
	return &CasesHandler{svc: svc}
}

// Open handles POST /v1/tickets/open.
func (h *CasesHandler) Open(c *fiber.Ctx) error {
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	ticket, outcome, err := h.svc.OpenOrUpdate(c.UserContext(),
		domain.TicketType(req.TicketType), req.OwnerID, req.Fingerprint,
		service.SeedContent{
			Content:      req.SeedContent,
			Payload:      req.SeedPayload,
			OwnerName:    req.OwnerName,
			ReferenceURL: req.ReferenceURL,
		})
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if outcome == service.OutcomeCreated {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.OpenTicketResponse{
		Outcome: string(outcome),
		Ticket:  ticket,
	})
}

// Activity handles POST /v1/tickets/activity.
func (h *CasesHandler) Activity(c *fiber.Ctx) error {
	var req dto.ActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ChannelRef == "" {
		return apperrors.NewValidationError("channel_ref is required", nil)
	}

	at := timeOrZero(req.At)
	if err := h.svc.RecordActivity(c.UserContext(), req.ChannelRef, at, req.IsHuman); err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Handled: true})
}

// Resolve handles POST /v1/tickets/resolve.
func (h *CasesHandler) Resolve(c *fiber.Ctx) error {
	var req dto.ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.TicketType == "" || req.OwnerID == "" {
		return apperrors.NewValidationError("ticket_type and owner_id are required", nil)
	}

	handled, err := h.svc.Resolve(c.UserContext(),
		domain.TicketType(req.TicketType), req.OwnerID, req.ResolvedEvent, timeOrZero(req.At))
	if err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Handled: handled})
}

// Close handles POST /v1/tickets/close.
func (h *CasesHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.ChannelRef == "" {
		return apperrors.NewValidationError("channel_ref is required", nil)
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}
	transcript := true
	if req.Transcript != nil {
		transcript = *req.Transcript
	}

	closed, err := h.svc.Close(c.UserContext(), req.ChannelRef, reason, transcript)
	if err != nil {
		return err
	}
	return c.JSON(dto.StatusResponse{Handled: closed})
}

// GetBySurface handles GET /v1/tickets/surface/:ref.
func (h *CasesHandler) GetBySurface(c *fiber.Ctx) error {
	ticket, err := h.svc.GetByChannelRef(c.UserContext(), c.Params("ref"))
	if err != nil {
		return err
	}
	return c.JSON(ticket)
}

// IsOpenSurface handles GET /v1/tickets/surface/:ref/open.
func (h *CasesHandler) IsOpenSurface(c *fiber.Ctx) error {
	open := h.svc.IsOpenTicketSurface(c.UserContext(), c.Params("ref"))
	return c.JSON(fiber.Map{"open": open})
}

// HasOpen handles GET /v1/tickets/open with type and owner_id query
// parameters.
func (h *CasesHandler) HasOpen(c *fiber.Ctx) error {
	ticketType := c.Query("type")
	ownerID := c.Query("owner_id")
	if ticketType == "" || ownerID == "" {
		return apperrors.NewValidationError("type and owner_id are required", nil)
	}
	open := h.svc.HasOpenTicket(c.UserContext(), domain.TicketType(ticketType), ownerID)
	return c.JSON(fiber.Map{"open": open})
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
