package handler

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler answers liveness probes. The service keeps no persistent
// state, so there is nothing deeper to check.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Register(r fiber.Router) {
	r.Get("/health", h.health)
}

func (h *HealthHandler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
