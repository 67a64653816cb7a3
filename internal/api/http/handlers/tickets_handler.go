package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// MessageHistory loads a ticket's full chat transcript.
type MessageHistory interface {
	History(ctx context.Context, ticketID string) ([]domain.ChatMessage, error)
}

// TicketsHandler manages client ticket endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	messages MessageHistory
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, messages MessageHistory) *TicketsHandler {
	return &TicketsHandler{service: ticketService, messages: messages}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	client, err := clientPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), client, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	client, err := clientPrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, total, err := h.service.ListClientTickets(c.UserContext(), client.ID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(tickets),
		"meta": dto.PageMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.ownedTicket(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTranscript GET /tickets/:id/messages.
func (h *TicketsHandler) GetTranscript(c *fiber.Ctx) error {
	ticket, err := h.ownedTicket(c)
	if err != nil {
		return err
	}
	return transcript(c, h.messages, ticket)
}

func (h *TicketsHandler) ownedTicket(c *fiber.Ctx) (*domain.Ticket, error) {
	client, err := clientPrincipal(c)
	if err != nil {
		return nil, err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return nil, err
	}
	return h.service.GetTicketForClient(c.UserContext(), client.ID, ticketID)
}

func transcript(c *fiber.Ctx, messages MessageHistory, ticket *domain.Ticket) error {
	history, err := messages.History(c.UserContext(), ticket.ID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return c.JSON(fiber.Map{"data": dto.TicketTranscriptResponse{
		Ticket:   dto.NewTicketResponse(ticket),
		Messages: history,
	}})
}

func clientPrincipal(c *fiber.Ctx) (*domain.Client, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Client == nil {
		return nil, apperrors.NewForbidden("client account required")
	}
	return principal.Client, nil
}

func superAdminPrincipal(c *fiber.Ctx) (*domain.SuperAdmin, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SuperAdmin == nil {
		return nil, apperrors.NewForbidden("super admin role required")
	}
	return principal.SuperAdmin, nil
}

func ticketIDParam(c *fiber.Ctx) (string, error) {
	return idParam(c, "ticket")
}

// idParam rejects malformed ids before they reach the database.
func idParam(c *fiber.Ctx, resource string) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return id, nil
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	companyID, err := queryUUID(c, "companyId")
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		CompanyID:  companyID,
		SearchTerm: queryString(c, "q"),
	}
	for _, s := range queryList(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, p := range queryList(c, "priority") {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(p))
	}
	filter.CreatedFrom = parseTime(c.Query("createdFrom"))
	filter.CreatedTo = parseTime(c.Query("createdTo"))
	filter.Limit, filter.Offset = pageParams(c)
	return filter, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}
