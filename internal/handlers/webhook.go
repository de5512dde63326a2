package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/services"
)

// WebhookHandler receives provider callbacks and feeds them to the pipeline.
type WebhookHandler struct {
	pipeline *services.Pipeline
	log      *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(pipeline *services.Pipeline, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline, log: log}
}

// HandleEvolution processes an Evolution API webhook. The provider expects
// 200 with {success:true} for anything it should not retry.
func (h *WebhookHandler) HandleEvolution(c *fiber.Ctx) error {
	result := h.pipeline.ProcessWebhook(c.Body())
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}

// HandleWaha processes a WAHA webhook. WAHA runs one shared session, so the
// owning tenant rides on the route.
func (h *WebhookHandler) HandleWaha(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")
	if tenantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "missing tenant id",
		})
	}

	result := h.pipeline.ProcessWahaWebhook(tenantID, c.Body())
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}
