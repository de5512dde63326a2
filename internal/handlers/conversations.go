package handlers

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// ConversationHandler serves the dashboard's conversation views and agent
// actions.
type ConversationHandler struct {
	store     storage.Store
	gateway   services.Gateway
	notifier  realtime.Notifier
	responder *services.AutoResponder
	log       *logrus.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(store storage.Store, gateway services.Gateway, notifier realtime.Notifier, responder *services.AutoResponder, log *logrus.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:     store,
		gateway:   gateway,
		notifier:  notifier,
		responder: responder,
		log:       log,
	}
}

// List returns all conversations, newest activity first.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	convs, err := h.store.GetAllConversations()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list conversations"})
	}
	return c.JSON(convs)
}

// Get returns one conversation.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	conv, err := h.store.GetConversation(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	return c.JSON(conv)
}

// Messages returns the conversation's messages in chronological order.
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	if _, err := h.store.GetConversation(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}

	msgs, err := h.store.GetMessagesByConversation(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list messages"})
	}
	return c.JSON(msgs)
}

// MarkRead clears the unread counter and flags incoming messages as read.
func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.store.MarkConversationRead(c.Params("id")); err != nil {
		if err == storage.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to mark conversation read"})
	}
	return c.JSON(fiber.Map{"success": true})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (r updateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			models.ConversationStatusWaiting,
			models.ConversationStatusInProgress,
			models.ConversationStatusCompleted,
			models.ConversationStatusClosed,
		)),
	)
}

// UpdateStatus transitions a conversation. Moving to a terminal status also
// cancels any pending chatbot reply.
func (h *ConversationHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	conv, err := h.store.GetConversation(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}

	if err := h.store.UpdateConversationStatus(conv.ID, req.Status); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update status"})
	}
	conv.Status = req.Status

	if !conv.IsOpen() {
		h.responder.Cancel(conv.ID)
	}
	h.notifier.NotifyConversationStatusChange(conv)

	return c.JSON(conv)
}

type sendMessageRequest struct {
	Content  string          `json:"content"`
	Media    *services.Media `json:"media,omitempty"`
	SenderID string          `json:"sender_id,omitempty"`
}

func (r sendMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required.When(r.Media == nil), validation.Length(0, 4096)),
	)
}

// SendMessage delivers an agent-authored message. Any pending chatbot reply
// for the conversation is cancelled first: the human takes over.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	conv, err := h.store.GetConversation(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	if !conv.IsOpen() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conversation is closed"})
	}

	h.responder.Cancel(conv.ID)

	var result services.SendResult
	messageType := models.MessageTypeText
	if req.Media != nil {
		messageType = req.Media.Type
		result = h.gateway.SendMedia(conv.WhatsappConnectionID, conv.ContactPhone, *req.Media)
	} else {
		result = h.gateway.SendText(conv.WhatsappConnectionID, conv.ContactPhone, req.Content)
	}
	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": result.Error})
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        req.Content,
		MessageType:    messageType,
		Direction:      models.DirectionOutgoing,
		IsRead:         true,
		Timestamp:      time.Now(),
	}
	if result.MessageID != "" {
		msg.ExternalID = &result.MessageID
	}
	if req.Media != nil && req.Media.URL != "" {
		msg.MediaURL = &req.Media.URL
	}

	saved, _, err := h.store.CreateMessage(msg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to persist message"})
	}

	if err := h.store.TouchConversation(conv.ID, req.Content, saved.Timestamp, false); err != nil {
		h.log.Errorf("❌ Failed to update conversation preview: %v", err)
	}

	h.notifier.NotifyNewMessage(saved, conv)
	return c.Status(fiber.StatusCreated).JSON(saved)
}

// ListClients returns every known client.
func (h *ConversationHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.store.GetAllClients()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list clients"})
	}
	return c.JSON(clients)
}

type clientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

func (r clientRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Phone, validation.Required, validation.Length(8, 20)),
	)
}

// CreateClient registers a contact manually. Phones are normalized the same
// way inbound webhooks are, so both paths land on the same row.
func (h *ConversationHandler) CreateClient(c *fiber.Ctx) error {
	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	phone := services.NormalizePhone(req.Phone)
	if _, err := h.store.GetClientByPhone(phone); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Phone already registered"})
	}

	client, err := h.store.CreateClient(&models.Client{
		Name:  req.Name,
		Phone: phone,
		Notes: req.Notes,
	})
	if errors.Is(err, storage.ErrDuplicate) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Phone already registered"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create client"})
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

// UpdateClient edits a contact's name and notes. The phone is immutable; it
// is the webhook correlation key.
func (h *ConversationHandler) UpdateClient(c *fiber.Ctx) error {
	client, err := h.store.GetClient(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	}

	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Name != "" {
		client.Name = req.Name
	}
	if req.Notes != "" {
		client.Notes = req.Notes
	}
	if err := h.store.UpdateClient(client); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update client"})
	}
	return c.JSON(client)
}
