package storage

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// DatabaseStore implements Store backed by PostgreSQL via GORM.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a new database-backed storage.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate runs schema migrations for all models plus the partial unique index
// that guarantees at most one open conversation per contact and connection.
func (s *DatabaseStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Client{},
		&models.Conversation{},
		&models.Message{},
		&models.WhatsAppConnection{},
		&models.AIAgentConfig{},
		&models.User{},
		&models.Queue{},
	); err != nil {
		return err
	}

	// AutoMigrate cannot express partial indexes.
	return s.db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_open_conversation
		 ON conversations (contact_phone, whatsapp_connection_id)
		 WHERE status NOT IN ('completed', 'closed')`,
	).Error
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx surfaces 23505 in the error text; GORM does not always translate it.
	return err != nil && strings.Contains(err.Error(), "23505")
}

// Client operations

func (s *DatabaseStore) CreateClient(client *models.Client) (*models.Client, error) {
	if err := s.db.Create(client).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return client, nil
}

func (s *DatabaseStore) GetClient(id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.First(&client, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &client, nil
}

func (s *DatabaseStore) GetClientByPhone(phone string) (*models.Client, error) {
	var client models.Client
	if err := s.db.First(&client, "phone = ?", phone).Error; err != nil {
		return nil, translateErr(err)
	}
	return &client, nil
}

func (s *DatabaseStore) GetAllClients() ([]*models.Client, error) {
	var clients []*models.Client
	if err := s.db.Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *DatabaseStore) UpdateClient(client *models.Client) error {
	result := s.db.Model(&models.Client{}).Where("id = ?", client.ID).Updates(client)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Conversation operations

func (s *DatabaseStore) GetConversation(id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.db.First(&conv, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) GetAllConversations() ([]*models.Conversation, error) {
	var convs []*models.Conversation
	if err := s.db.Order("last_message_at DESC NULLS LAST, created_at DESC").Find(&convs).Error; err != nil {
		return nil, err
	}
	return convs, nil
}

func (s *DatabaseStore) FindOpenConversation(phone, tenantID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.
		Where("contact_phone = ? AND whatsapp_connection_id = ? AND status NOT IN ?",
			phone, tenantID, []string{models.ConversationStatusCompleted, models.ConversationStatusClosed}).
		First(&conv).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &conv, nil
}

func (s *DatabaseStore) CreateOpenConversation(conv *models.Conversation) (*models.Conversation, bool, error) {
	if existing, err := s.FindOpenConversation(conv.ContactPhone, conv.WhatsappConnectionID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if err := s.db.Create(conv).Error; err != nil {
		// A concurrent webhook won the race; the partial index rejected us,
		// so the open conversation now exists.
		if isUniqueViolation(err) {
			existing, ferr := s.FindOpenConversation(conv.ContactPhone, conv.WhatsappConnectionID)
			if ferr != nil {
				return nil, false, ferr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return conv, true, nil
}

func (s *DatabaseStore) UpdateConversation(conv *models.Conversation) error {
	result := s.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(conv)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) UpdateConversationStatus(id, status string) error {
	result := s.db.Model(&models.Conversation{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) TouchConversation(id, lastMessage string, at time.Time, incrementUnread bool) error {
	updates := map[string]interface{}{
		"last_message":    lastMessage,
		"last_message_at": at,
	}
	if incrementUnread {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	result := s.db.Model(&models.Conversation{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DatabaseStore) MarkConversationRead(id string) error {
	result := s.db.Model(&models.Conversation{}).Where("id = ?", id).Update("unread_count", 0)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return s.db.Model(&models.Message{}).
		Where("conversation_id = ? AND direction = ?", id, models.DirectionIncoming).
		Update("is_read", true).Error
}

func (s *DatabaseStore) GetStaleOpenConversations(before time.Time) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := s.db.
		Where("status NOT IN ?", []string{models.ConversationStatusCompleted, models.ConversationStatusClosed}).
		Where("COALESCE(last_message_at, created_at) < ?", before).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// Message operations

func (s *DatabaseStore) CreateMessage(msg *models.Message) (*models.Message, bool, error) {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "conversation_id"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 0 {
		var existing models.Message
		err := s.db.
			First(&existing, "conversation_id = ? AND external_id = ?", msg.ConversationID, msg.ExternalID).
			Error
		if err != nil {
			return nil, false, translateErr(err)
		}
		return &existing, false, nil
	}
	return msg, true, nil
}

func (s *DatabaseStore) GetMessagesByConversation(conversationID string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.
		Where("conversation_id = ?", conversationID).
		Order("timestamp ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// WhatsApp connection operations

func (s *DatabaseStore) CreateConnection(conn *models.WhatsAppConnection) (*models.WhatsAppConnection, error) {
	if err := s.db.Create(conn).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return conn, nil
}

func (s *DatabaseStore) GetConnection(id string) (*models.WhatsAppConnection, error) {
	var conn models.WhatsAppConnection
	if err := s.db.First(&conn, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &conn, nil
}

func (s *DatabaseStore) GetConnectionByTenant(tenantID string) (*models.WhatsAppConnection, error) {
	var conn models.WhatsAppConnection
	if err := s.db.First(&conn, "tenant_id = ?", tenantID).Error; err != nil {
		return nil, translateErr(err)
	}
	return &conn, nil
}

func (s *DatabaseStore) GetAllConnections() ([]*models.WhatsAppConnection, error) {
	var conns []*models.WhatsAppConnection
	if err := s.db.Order("created_at ASC").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (s *DatabaseStore) UpdateConnection(conn *models.WhatsAppConnection) error {
	result := s.db.Model(&models.WhatsAppConnection{}).Where("id = ?", conn.ID).Updates(map[string]interface{}{
		"name":       conn.Name,
		"status":     conn.Status,
		"phone":      conn.Phone,
		"qr_code":    conn.QRCode,
		"is_default": conn.IsDefault,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AI agent config operations

func (s *DatabaseStore) GetAIAgentConfig(tenantID string) (*models.AIAgentConfig, error) {
	var cfg models.AIAgentConfig
	if err := s.db.First(&cfg, "tenant_id = ?", tenantID).Error; err != nil {
		return nil, translateErr(err)
	}
	return &cfg, nil
}

func (s *DatabaseStore) SaveAIAgentConfig(cfg *models.AIAgentConfig) (*models.AIAgentConfig, error) {
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mode", "is_enabled", "welcome_message", "response_delay", "system_prompt", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return nil, err
	}
	return s.GetAIAgentConfig(cfg.TenantID)
}

// User operations

func (s *DatabaseStore) CreateUser(user *models.User) (*models.User, error) {
	if err := s.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

func (s *DatabaseStore) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *DatabaseStore) GetAllUsers() ([]*models.User, error) {
	var users []*models.User
	if err := s.db.Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *DatabaseStore) UpdateUser(user *models.User) error {
	result := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":      user.Name,
		"role":      user.Role,
		"is_online": user.IsOnline,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Queue operations

func (s *DatabaseStore) CreateQueue(queue *models.Queue) (*models.Queue, error) {
	if err := s.db.Create(queue).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return queue, nil
}

func (s *DatabaseStore) GetQueue(id string) (*models.Queue, error) {
	var queue models.Queue
	if err := s.db.First(&queue, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &queue, nil
}

func (s *DatabaseStore) GetAllQueues() ([]*models.Queue, error) {
	var queues []*models.Queue
	if err := s.db.Order("name ASC").Find(&queues).Error; err != nil {
		return nil, err
	}
	return queues, nil
}
