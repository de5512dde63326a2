package realtime

import (
	"time"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// Event types pushed to dashboard subscribers.
const (
	EventNewMessage               = "new_message"
	EventNewConversation          = "new_conversation"
	EventConversationStatusChange = "conversation_status_change"
	EventWhatsAppStatus           = "whatsapp_status"
)

// Event is the envelope broadcast to all subscribers. Delivery is best
// effort, at most once; the database remains the source of truth.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType string, data interface{}) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now()}
}

// Notifier pushes state changes to interested consumers (websocket clients,
// message brokers). Implementations must not block the caller.
type Notifier interface {
	NotifyNewMessage(msg *models.Message, conv *models.Conversation)
	NotifyNewConversation(conv *models.Conversation)
	NotifyConversationStatusChange(conv *models.Conversation)
	NotifyWhatsAppStatus(conn *models.WhatsAppConnection)
}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyNewMessage(msg *models.Message, conv *models.Conversation) {
	for _, n := range m {
		n.NotifyNewMessage(msg, conv)
	}
}

func (m MultiNotifier) NotifyNewConversation(conv *models.Conversation) {
	for _, n := range m {
		n.NotifyNewConversation(conv)
	}
}

func (m MultiNotifier) NotifyConversationStatusChange(conv *models.Conversation) {
	for _, n := range m {
		n.NotifyConversationStatusChange(conv)
	}
}

func (m MultiNotifier) NotifyWhatsAppStatus(conn *models.WhatsAppConnection) {
	for _, n := range m {
		n.NotifyWhatsAppStatus(conn)
	}
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) NotifyNewMessage(*models.Message, *models.Conversation) {}
func (NopNotifier) NotifyNewConversation(*models.Conversation)             {}
func (NopNotifier) NotifyConversationStatusChange(*models.Conversation)    {}
func (NopNotifier) NotifyWhatsAppStatus(*models.WhatsAppConnection)        {}
