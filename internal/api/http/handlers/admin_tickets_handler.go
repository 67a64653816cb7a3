package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AdminTicketsHandler serves the operator ticket console.
type AdminTicketsHandler struct {
	tickets  *service.TicketService
	messages MessageHistory
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService, messages MessageHistory) *AdminTicketsHandler {
	return &AdminTicketsHandler{tickets: ticketService, messages: messages}
}

// ListTickets GET /admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, total, err := h.tickets.ListAllTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewTicketResponses(tickets),
		"meta": dto.PageMeta{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	})
}

// GetTicket GET /admin/tickets/:id.
func (h *AdminTicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTranscript GET /admin/tickets/:id/messages.
func (h *AdminTicketsHandler) GetTranscript(c *fiber.Ctx) error {
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return transcript(c, h.messages, ticket)
}

// UpdateStatus PATCH /admin/tickets/:id/status.
func (h *AdminTicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	admin, err := superAdminPrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), admin, ticketID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}
