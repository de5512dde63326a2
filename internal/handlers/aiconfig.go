package handlers

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// AIConfigHandler manages per-tenant chatbot configuration.
type AIConfigHandler struct {
	store     storage.Store
	responder *services.AutoResponder
	log       *logrus.Logger
}

// NewAIConfigHandler creates a new chatbot config handler.
func NewAIConfigHandler(store storage.Store, responder *services.AutoResponder, log *logrus.Logger) *AIConfigHandler {
	return &AIConfigHandler{store: store, responder: responder, log: log}
}

// Get returns the tenant's chatbot config.
func (h *AIConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.store.GetAIAgentConfig(c.Params("tenantId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Config not found"})
	}
	return c.JSON(cfg)
}

type saveConfigRequest struct {
	Mode           string `json:"mode"`
	IsEnabled      bool   `json:"is_enabled"`
	WelcomeMessage string `json:"welcome_message"`
	ResponseDelay  int    `json:"response_delay"`
	SystemPrompt   string `json:"system_prompt"`
}

func (r saveConfigRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.In(models.AIModeChatbot, models.AIModeAgent)),
		validation.Field(&r.ResponseDelay, validation.Min(0), validation.Max(300)),
	)
}

// Save upserts the tenant's chatbot config and drops the responder's cached
// copy so the change takes effect immediately.
func (h *AIConfigHandler) Save(c *fiber.Ctx) error {
	tenantID := c.Params("tenantId")

	var req saveConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg, err := h.store.SaveAIAgentConfig(&models.AIAgentConfig{
		TenantID:       tenantID,
		Mode:           req.Mode,
		IsEnabled:      req.IsEnabled,
		WelcomeMessage: req.WelcomeMessage,
		ResponseDelay:  req.ResponseDelay,
		SystemPrompt:   req.SystemPrompt,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save config"})
	}

	h.responder.InvalidateConfig(tenantID)
	h.log.Infof("🤖 Chatbot config updated for %s (enabled=%v mode=%s)", tenantID, cfg.IsEnabled, cfg.Mode)

	return c.JSON(cfg)
}
