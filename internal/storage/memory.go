package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// MemoryStore holds all data in memory. Used for tests and local development
// (USE_MEMORY_STORE=true); not for production.
type MemoryStore struct {
	clients       map[string]*models.Client
	conversations map[string]*models.Conversation
	messages      map[string]*models.Message
	connections   map[string]*models.WhatsAppConnection
	aiConfigs     map[string]*models.AIAgentConfig
	users         map[string]*models.User
	queues        map[string]*models.Queue

	// externalKeys deduplicates inbound messages: conversationID|externalID.
	externalKeys map[string]string

	clientMu sync.RWMutex
	convMu   sync.RWMutex
	msgMu    sync.RWMutex
	connMu   sync.RWMutex
	cfgMu    sync.RWMutex
	userMu   sync.RWMutex
	queueMu  sync.RWMutex
}

// NewMemoryStore creates a new in-memory storage.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:       make(map[string]*models.Client),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
		connections:   make(map[string]*models.WhatsAppConnection),
		aiConfigs:     make(map[string]*models.AIAgentConfig),
		users:         make(map[string]*models.User),
		queues:        make(map[string]*models.Queue),
		externalKeys:  make(map[string]string),
	}
}

// Client operations

func (m *MemoryStore) CreateClient(client *models.Client) (*models.Client, error) {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	for _, existing := range m.clients {
		if existing.Phone == client.Phone {
			return nil, ErrDuplicate
		}
	}

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.CreatedAt = time.Now()
	client.UpdatedAt = client.CreatedAt

	m.clients[client.ID] = client
	return client, nil
}

func (m *MemoryStore) GetClient(id string) (*models.Client, error) {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()

	client, exists := m.clients[id]
	if !exists {
		return nil, ErrNotFound
	}
	return client, nil
}

func (m *MemoryStore) GetClientByPhone(phone string) (*models.Client, error) {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()

	for _, client := range m.clients {
		if client.Phone == phone {
			return client, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAllClients() ([]*models.Client, error) {
	m.clientMu.RLock()
	defer m.clientMu.RUnlock()

	clients := make([]*models.Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	return clients, nil
}

func (m *MemoryStore) UpdateClient(client *models.Client) error {
	m.clientMu.Lock()
	defer m.clientMu.Unlock()

	if _, exists := m.clients[client.ID]; !exists {
		return ErrNotFound
	}
	client.UpdatedAt = time.Now()
	m.clients[client.ID] = client
	return nil
}

// Conversation operations

func (m *MemoryStore) GetConversation(id string) (*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	conv, exists := m.conversations[id]
	if !exists {
		return nil, ErrNotFound
	}
	return conv, nil
}

func (m *MemoryStore) GetAllConversations() ([]*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	convs := make([]*models.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		convs = append(convs, conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
	return convs, nil
}

func (m *MemoryStore) FindOpenConversation(phone, tenantID string) (*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	return m.findOpenLocked(phone, tenantID)
}

func (m *MemoryStore) findOpenLocked(phone, tenantID string) (*models.Conversation, error) {
	for _, conv := range m.conversations {
		if conv.ContactPhone == phone && conv.WhatsappConnectionID == tenantID && conv.IsOpen() {
			return conv, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateOpenConversation(conv *models.Conversation) (*models.Conversation, bool, error) {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	// The lock makes find-or-create atomic: concurrent ingestions for the
	// same phone cannot both create an open conversation.
	if existing, err := m.findOpenLocked(conv.ContactPhone, conv.WhatsappConnectionID); err == nil {
		return existing, false, nil
	}

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = models.ConversationStatusWaiting
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt

	m.conversations[conv.ID] = conv
	return conv, true, nil
}

func (m *MemoryStore) UpdateConversation(conv *models.Conversation) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	if _, exists := m.conversations[conv.ID]; !exists {
		return ErrNotFound
	}
	conv.UpdatedAt = time.Now()
	m.conversations[conv.ID] = conv
	return nil
}

func (m *MemoryStore) UpdateConversationStatus(id, status string) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	conv, exists := m.conversations[id]
	if !exists {
		return ErrNotFound
	}
	conv.Status = status
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) TouchConversation(id, lastMessage string, at time.Time, incrementUnread bool) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()

	conv, exists := m.conversations[id]
	if !exists {
		return ErrNotFound
	}
	conv.LastMessage = lastMessage
	conv.LastMessageAt = &at
	if incrementUnread {
		conv.UnreadCount++
	}
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) MarkConversationRead(id string) error {
	m.convMu.Lock()
	conv, exists := m.conversations[id]
	if !exists {
		m.convMu.Unlock()
		return ErrNotFound
	}
	conv.UnreadCount = 0
	m.convMu.Unlock()

	m.msgMu.Lock()
	defer m.msgMu.Unlock()
	for _, msg := range m.messages {
		if msg.ConversationID == id && msg.Direction == models.DirectionIncoming {
			msg.IsRead = true
		}
	}
	return nil
}

func (m *MemoryStore) GetStaleOpenConversations(before time.Time) ([]*models.Conversation, error) {
	m.convMu.RLock()
	defer m.convMu.RUnlock()

	var stale []*models.Conversation
	for _, conv := range m.conversations {
		if !conv.IsOpen() {
			continue
		}
		last := conv.CreatedAt
		if conv.LastMessageAt != nil {
			last = *conv.LastMessageAt
		}
		if last.Before(before) {
			stale = append(stale, conv)
		}
	}
	return stale, nil
}

// Message operations

func (m *MemoryStore) CreateMessage(msg *models.Message) (*models.Message, bool, error) {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	if msg.ExternalID != nil && *msg.ExternalID != "" {
		key := msg.ConversationID + "|" + *msg.ExternalID
		if existingID, seen := m.externalKeys[key]; seen {
			return m.messages[existingID], false, nil
		}
		defer func() { m.externalKeys[key] = msg.ID }()
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.MessageType == "" {
		msg.MessageType = models.MessageTypeText
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.CreatedAt = time.Now()

	m.messages[msg.ID] = msg
	return msg, true, nil
}

func (m *MemoryStore) GetMessagesByConversation(conversationID string) ([]*models.Message, error) {
	m.msgMu.RLock()
	defer m.msgMu.RUnlock()

	var msgs []*models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

// WhatsApp connection operations

func (m *MemoryStore) CreateConnection(conn *models.WhatsAppConnection) (*models.WhatsAppConnection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	for _, existing := range m.connections {
		if existing.TenantID == conn.TenantID {
			return nil, ErrDuplicate
		}
	}

	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.Status == "" {
		conn.Status = models.ConnectionStatusDisconnected
	}
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt

	m.connections[conn.ID] = conn
	return conn, nil
}

func (m *MemoryStore) GetConnection(id string) (*models.WhatsAppConnection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conn, exists := m.connections[id]
	if !exists {
		return nil, ErrNotFound
	}
	return conn, nil
}

func (m *MemoryStore) GetConnectionByTenant(tenantID string) (*models.WhatsAppConnection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	for _, conn := range m.connections {
		if conn.TenantID == tenantID {
			return conn, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAllConnections() ([]*models.WhatsAppConnection, error) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conns := make([]*models.WhatsAppConnection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	return conns, nil
}

func (m *MemoryStore) UpdateConnection(conn *models.WhatsAppConnection) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if _, exists := m.connections[conn.ID]; !exists {
		return ErrNotFound
	}
	conn.UpdatedAt = time.Now()
	m.connections[conn.ID] = conn
	return nil
}

// AI agent config operations

func (m *MemoryStore) GetAIAgentConfig(tenantID string) (*models.AIAgentConfig, error) {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()

	cfg, exists := m.aiConfigs[tenantID]
	if !exists {
		return nil, ErrNotFound
	}
	return cfg, nil
}

func (m *MemoryStore) SaveAIAgentConfig(cfg *models.AIAgentConfig) (*models.AIAgentConfig, error) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Mode == "" {
		cfg.Mode = models.AIModeChatbot
	}
	if cfg.ResponseDelay == 0 {
		cfg.ResponseDelay = 3
	}
	cfg.UpdatedAt = time.Now()

	m.aiConfigs[cfg.TenantID] = cfg
	return cfg, nil
}

// User operations

func (m *MemoryStore) CreateUser(user *models.User) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, ErrDuplicate
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleAgent
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	m.users[user.ID] = user
	return user, nil
}

func (m *MemoryStore) GetUser(id string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetAllUsers() ([]*models.User, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	users := make([]*models.User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, user)
	}
	return users, nil
}

func (m *MemoryStore) UpdateUser(user *models.User) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if _, exists := m.users[user.ID]; !exists {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

// Queue operations

func (m *MemoryStore) CreateQueue(queue *models.Queue) (*models.Queue, error) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()

	if queue.ID == "" {
		queue.ID = uuid.NewString()
	}
	queue.CreatedAt = time.Now()
	queue.UpdatedAt = queue.CreatedAt

	m.queues[queue.ID] = queue
	return queue, nil
}

func (m *MemoryStore) GetQueue(id string) (*models.Queue, error) {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()

	queue, exists := m.queues[id]
	if !exists {
		return nil, ErrNotFound
	}
	return queue, nil
}

func (m *MemoryStore) GetAllQueues() ([]*models.Queue, error) {
	m.queueMu.RLock()
	defer m.queueMu.RUnlock()

	queues := make([]*models.Queue, 0, len(m.queues))
	for _, queue := range m.queues {
		queues = append(queues, queue)
	}
	return queues, nil
}
