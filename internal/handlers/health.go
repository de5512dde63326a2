package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fivlabs/fivapp-backend/internal/services"
)

// HealthHandler reports service liveness and provider reachability.
type HealthHandler struct {
	gateway services.Gateway
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(gateway services.Gateway) *HealthHandler {
	return &HealthHandler{gateway: gateway, started: time.Now()}
}

// Check returns liveness plus the provider's health.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	provider := h.gateway.Health()

	status := "ok"
	if !provider.Healthy {
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":   status,
		"uptime":   time.Since(h.started).String(),
		"provider": provider,
	})
}
