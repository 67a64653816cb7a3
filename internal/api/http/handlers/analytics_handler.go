package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/service"
)

// AnalyticsHandler serves the operator dashboard numbers.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview GET /admin/analytics.
func (h *AnalyticsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.analytics.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}
