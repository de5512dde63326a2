package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation statuses. A conversation is "open" until it reaches a
// terminal status (completed or closed).
const (
	ConversationStatusWaiting    = "waiting"
	ConversationStatusInProgress = "in_progress"
	ConversationStatusCompleted  = "completed"
	ConversationStatusClosed     = "closed"
)

// Conversation is one support interaction with one client over one tenant's
// WhatsApp connection. At most one open conversation may exist per
// (contact_phone, whatsapp_connection_id) pair; the storage layer enforces
// this with a partial unique index.
type Conversation struct {
	ID                   string     `gorm:"primaryKey" json:"id"`
	ContactName          string     `json:"contact_name"`
	ContactPhone         string     `gorm:"index;not null" json:"contact_phone"`
	ClientID             string     `gorm:"index" json:"client_id"`
	WhatsappConnectionID string     `gorm:"index;not null" json:"whatsapp_connection_id"`
	Status               string     `gorm:"default:'waiting'" json:"status"`
	LastMessage          string     `json:"last_message,omitempty"`
	LastMessageAt        *time.Time `json:"last_message_at,omitempty"`
	UnreadCount          int        `json:"unread_count"`
	IsGroup              bool       `json:"is_group"`
	AssignedAgentID      *string    `json:"assigned_agent_id,omitempty"`
	QueueID              *string    `json:"queue_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ConversationStatusWaiting
	}
	return nil
}

// IsOpen reports whether the conversation has not reached a terminal status.
func (c *Conversation) IsOpen() bool {
	return c.Status != ConversationStatusCompleted && c.Status != ConversationStatusClosed
}
