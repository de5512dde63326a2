package handlers

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// WhatsAppHandler manages connection lifecycle against the provider.
type WhatsAppHandler struct {
	store    storage.Store
	gateway  services.Gateway
	notifier realtime.Notifier
	log      *logrus.Logger
}

// NewWhatsAppHandler creates a new WhatsApp connection handler.
func NewWhatsAppHandler(store storage.Store, gateway services.Gateway, notifier realtime.Notifier, log *logrus.Logger) *WhatsAppHandler {
	return &WhatsAppHandler{store: store, gateway: gateway, notifier: notifier, log: log}
}

type createConnectionRequest struct {
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
}

func (r createConnectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.TenantID, validation.Required, validation.Length(1, 100)),
	)
}

// CreateConnection registers a connection and provisions the provider
// instance for it.
func (h *WhatsAppHandler) CreateConnection(c *fiber.Ctx) error {
	var req createConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	conn, err := h.store.CreateConnection(&models.WhatsAppConnection{
		Name:     req.Name,
		TenantID: req.TenantID,
		Status:   models.ConnectionStatusDisconnected,
	})
	if err != nil {
		if err == storage.ErrDuplicate {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Connection already exists for this tenant"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create connection"})
	}

	result := h.gateway.CreateInstance(conn.TenantID)
	if result.Success {
		conn.Status = models.ConnectionStatusConnecting
		if result.QRCode != "" {
			conn.Status = models.ConnectionStatusQRReady
			conn.QRCode = result.QRCode
		}
		if err := h.store.UpdateConnection(conn); err != nil {
			h.log.Errorf("❌ Failed to persist connection state: %v", err)
		}
		h.notifier.NotifyWhatsAppStatus(conn)
	} else {
		h.log.Errorf("❌ Provider instance creation failed for %s: %s", conn.TenantID, result.Error)
	}

	return c.Status(fiber.StatusCreated).JSON(conn)
}

// ListConnections returns every registered connection.
func (h *WhatsAppHandler) ListConnections(c *fiber.Ctx) error {
	conns, err := h.store.GetAllConnections()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list connections"})
	}
	return c.JSON(conns)
}

// GetConnection returns one connection by id.
func (h *WhatsAppHandler) GetConnection(c *fiber.Ctx) error {
	conn, err := h.store.GetConnection(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Connection not found"})
	}
	return c.JSON(conn)
}

// ConnectConnection requests a fresh QR code from the provider.
func (h *WhatsAppHandler) ConnectConnection(c *fiber.Ctx) error {
	conn, err := h.store.GetConnection(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Connection not found"})
	}

	result := h.gateway.ConnectInstance(conn.TenantID)
	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": result.Error})
	}

	conn.Status = models.ConnectionStatusQRReady
	conn.QRCode = result.QRCode
	if err := h.store.UpdateConnection(conn); err != nil {
		h.log.Errorf("❌ Failed to persist QR code: %v", err)
	}
	h.notifier.NotifyWhatsAppStatus(conn)

	return c.JSON(fiber.Map{"qr_code": result.QRCode, "status": conn.Status})
}

// GetConnectionStatus polls the provider and syncs the stored status.
func (h *WhatsAppHandler) GetConnectionStatus(c *fiber.Ctx) error {
	conn, err := h.store.GetConnection(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Connection not found"})
	}

	result := h.gateway.ConnectionState(conn.TenantID)
	if result.Success {
		status := models.MapProviderState(result.State)
		if status != conn.Status {
			conn.Status = status
			if status == models.ConnectionStatusConnected {
				conn.QRCode = ""
			}
			if err := h.store.UpdateConnection(conn); err != nil {
				h.log.Errorf("❌ Failed to sync connection status: %v", err)
			}
			h.notifier.NotifyWhatsAppStatus(conn)
		}
	}

	return c.JSON(fiber.Map{"status": conn.Status, "provider_state": result.State})
}

// DeleteConnection tears down the provider instance and disconnects the row.
func (h *WhatsAppHandler) DeleteConnection(c *fiber.Ctx) error {
	conn, err := h.store.GetConnection(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Connection not found"})
	}

	result := h.gateway.DeleteInstance(conn.TenantID)
	if !result.Success {
		h.log.Errorf("❌ Provider instance deletion failed for %s: %s", conn.TenantID, result.Error)
	}

	conn.Status = models.ConnectionStatusDisconnected
	conn.QRCode = ""
	if err := h.store.UpdateConnection(conn); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update connection"})
	}
	h.notifier.NotifyWhatsAppStatus(conn)

	return c.JSON(fiber.Map{"success": true})
}

// ListInstances proxies the provider's instance inventory.
func (h *WhatsAppHandler) ListInstances(c *fiber.Ctx) error {
	result := h.gateway.FetchInstances()
	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": result.Error})
	}
	return c.JSON(result.Instances)
}
