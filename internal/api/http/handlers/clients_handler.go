package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

// ClientsHandler lets operators review client accounts.
type ClientsHandler struct {
	clients *service.ClientService
}

// NewClientsHandler constructs handler.
func NewClientsHandler(clients *service.ClientService) *ClientsHandler {
	return &ClientsHandler{clients: clients}
}

// List GET /admin/clients.
func (h *ClientsHandler) List(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	companyID, err := queryUUID(c, "companyId")
	if err != nil {
		return err
	}
	filter := repository.ClientFilter{
		CompanyID: companyID,
		Limit:     limit,
		Offset:    offset,
	}
	if status := queryString(c, "status"); status != nil {
		s := domain.ClientStatus(*status)
		filter.Status = &s
	}
	clients, total, err := h.clients.ListClients(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.ClientResponse, 0, len(clients))
	for i := range clients {
		items = append(items, dto.NewClientResponse(&clients[i]))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": dto.PageMeta{Total: total, Limit: limit, Offset: offset},
	})
}

// Approve POST /admin/clients/:id/approve.
func (h *ClientsHandler) Approve(c *fiber.Ctx) error {
	return h.review(c, h.clients.Approve)
}

// Reject POST /admin/clients/:id/reject.
func (h *ClientsHandler) Reject(c *fiber.Ctx) error {
	return h.review(c, h.clients.Reject)
}

func (h *ClientsHandler) review(c *fiber.Ctx, action func(ctx context.Context, admin *domain.SuperAdmin, id string) (*domain.Client, error)) error {
	admin, err := superAdminPrincipal(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "client")
	if err != nil {
		return err
	}
	client, err := action(c.UserContext(), admin, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewClientResponse(client)})
}
