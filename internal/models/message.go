package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message types.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeAudio    = "audio"
	MessageTypeVideo    = "video"
	MessageTypeDocument = "document"
)

// Message directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message is a single inbound or outbound unit within a conversation.
// ExternalID carries the provider's message id for inbound messages and is
// unique per conversation, which is the dedup boundary for webhook replays.
type Message struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"index;uniqueIndex:idx_conversation_external;not null" json:"conversation_id"`
	Content        string    `json:"content"`
	MessageType    string    `gorm:"default:'text'" json:"message_type"`
	Direction      string    `gorm:"not null" json:"direction"`
	IsRead         bool      `json:"is_read"`
	MediaURL       *string   `json:"media_url,omitempty"`
	ExternalID     *string   `gorm:"uniqueIndex:idx_conversation_external" json:"external_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}
