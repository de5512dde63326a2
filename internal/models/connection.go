package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WhatsApp connection statuses.
const (
	ConnectionStatusDisconnected = "disconnected"
	ConnectionStatusConnecting   = "connecting"
	ConnectionStatusQRReady      = "qr_ready"
	ConnectionStatusConnected    = "connected"
)

// WhatsAppConnection is a per-tenant gateway session. TenantID doubles as the
// provider-side instance name, so webhook payloads can be routed back to the
// stored connection.
type WhatsAppConnection struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	TenantID  string    `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Status    string    `gorm:"default:'disconnected'" json:"status"`
	Phone     string    `json:"phone,omitempty"`
	QRCode    string    `json:"qr_code,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *WhatsAppConnection) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = ConnectionStatusDisconnected
	}
	return nil
}

// MapProviderState converts an Evolution connection.update state into the
// local connection status. Unknown states collapse to disconnected.
func MapProviderState(state string) string {
	switch state {
	case "open":
		return ConnectionStatusConnected
	case "connecting":
		return ConnectionStatusConnecting
	case "close":
		return ConnectionStatusDisconnected
	default:
		return ConnectionStatusDisconnected
	}
}
