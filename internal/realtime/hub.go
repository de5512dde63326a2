package realtime

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// Hub broadcasts events to connected dashboard websocket clients. All client
// bookkeeping happens on the Run goroutine, so no mutex is needed.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan Event
	done       chan struct{}

	log *logrus.Logger
}

// NewHub creates a websocket hub. Call Run in a goroutine before serving.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes register, unregister and broadcast events until Stop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = struct{}{}
			h.log.Debugf("🔌 WebSocket client connected (%d online)", len(h.clients))

		case conn := <-h.unregister:
			delete(h.clients, conn)
			h.log.Debugf("🔌 WebSocket client disconnected (%d online)", len(h.clients))

		case event := <-h.broadcast:
			h.broadcastToClients(event)

		case <-h.done:
			for conn := range h.clients {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				_ = conn.Close()
			}
			return
		}
	}
}

// Stop closes all client connections and ends the Run loop.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) broadcastToClients(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Errorf("❌ WebSocket marshal error: %v", err)
		return
	}

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Errorf("❌ WebSocket write error: %v", err)
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
}

// publish queues an event without blocking; if the buffer is full the event
// is dropped (delivery is at most once).
func (h *Hub) publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.Warnf("⚠️ WebSocket broadcast buffer full, dropping %s event", event.Type)
	}
}

func (h *Hub) NotifyNewMessage(msg *models.Message, conv *models.Conversation) {
	h.publish(NewEvent(EventNewMessage, fiber.Map{
		"message":      msg,
		"conversation": conv,
	}))
}

func (h *Hub) NotifyNewConversation(conv *models.Conversation) {
	h.publish(NewEvent(EventNewConversation, conv))
}

func (h *Hub) NotifyConversationStatusChange(conv *models.Conversation) {
	h.publish(NewEvent(EventConversationStatusChange, fiber.Map{
		"conversation_id": conv.ID,
		"status":          conv.Status,
	}))
}

func (h *Hub) NotifyWhatsAppStatus(conn *models.WhatsAppConnection) {
	h.publish(NewEvent(EventWhatsAppStatus, fiber.Map{
		"connection_id": conn.ID,
		"tenant_id":     conn.TenantID,
		"status":        conn.Status,
	}))
}

// RegisterRoutes mounts the websocket upgrade endpoint.
func (h *Hub) RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			h.unregister <- conn
			_ = conn.Close()
		}()

		h.register <- conn

		// Dashboard clients only listen; drain reads to detect disconnect.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Debugf("🔌 WebSocket read error: %v", err)
				}
				return
			}
		}
	}))
}
