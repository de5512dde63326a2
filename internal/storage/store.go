package storage

import (
	"errors"
	"time"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a create would violate a uniqueness rule.
var ErrDuplicate = errors.New("already exists")

// Store defines the persistence interface shared by the database and
// in-memory implementations.
type Store interface {
	// Client operations
	CreateClient(client *models.Client) (*models.Client, error)
	GetClient(id string) (*models.Client, error)
	GetClientByPhone(phone string) (*models.Client, error)
	GetAllClients() ([]*models.Client, error)
	UpdateClient(client *models.Client) error

	// Conversation operations
	GetConversation(id string) (*models.Conversation, error)
	GetAllConversations() ([]*models.Conversation, error)
	FindOpenConversation(phone, tenantID string) (*models.Conversation, error)
	// CreateOpenConversation atomically creates an open conversation for
	// (phone, tenant) or returns the existing open one. The boolean reports
	// whether a new row was created.
	CreateOpenConversation(conv *models.Conversation) (*models.Conversation, bool, error)
	UpdateConversation(conv *models.Conversation) error
	UpdateConversationStatus(id, status string) error
	// TouchConversation refreshes the cached preview fields after a message.
	TouchConversation(id, lastMessage string, at time.Time, incrementUnread bool) error
	MarkConversationRead(id string) error
	GetStaleOpenConversations(before time.Time) ([]*models.Conversation, error)

	// Message operations
	// CreateMessage persists a message. When the message carries an
	// ExternalID that already exists for the conversation, no new row is
	// written and the boolean is false (duplicate webhook delivery).
	CreateMessage(msg *models.Message) (*models.Message, bool, error)
	GetMessagesByConversation(conversationID string) ([]*models.Message, error)

	// WhatsApp connection operations
	CreateConnection(conn *models.WhatsAppConnection) (*models.WhatsAppConnection, error)
	GetConnection(id string) (*models.WhatsAppConnection, error)
	GetConnectionByTenant(tenantID string) (*models.WhatsAppConnection, error)
	GetAllConnections() ([]*models.WhatsAppConnection, error)
	UpdateConnection(conn *models.WhatsAppConnection) error

	// AI agent config operations
	GetAIAgentConfig(tenantID string) (*models.AIAgentConfig, error)
	SaveAIAgentConfig(cfg *models.AIAgentConfig) (*models.AIAgentConfig, error)

	// User operations
	CreateUser(user *models.User) (*models.User, error)
	GetUser(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetAllUsers() ([]*models.User, error)
	UpdateUser(user *models.User) error

	// Queue operations
	CreateQueue(queue *models.Queue) (*models.Queue, error)
	GetQueue(id string) (*models.Queue, error)
	GetAllQueues() ([]*models.Queue, error)
}
