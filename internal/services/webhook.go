package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// Result is the processing outcome reported back to the provider. The
// webhook endpoint acks with success=true even for events it does not
// handle, so the provider never retries them.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Webhook event kinds.
type eventKind int

const (
	eventUnknown eventKind = iota
	eventMessageUpsert
	eventConnectionUpdate
)

func parseEventKind(event string) eventKind {
	switch event {
	case "messages.upsert":
		return eventMessageUpsert
	case "connection.update":
		return eventConnectionUpdate
	default:
		return eventUnknown
	}
}

// webhookEnvelope is the outer shape of every Evolution webhook. The
// instance name identifies the tenant.
type webhookEnvelope struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type messageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type mediaAttachment struct {
	URL      string `json:"url"`
	Caption  string `json:"caption"`
	Mimetype string `json:"mimetype"`
}

type extendedText struct {
	Text string `json:"text"`
}

type messageBody struct {
	Conversation    string           `json:"conversation"`
	ExtendedText    *extendedText    `json:"extendedTextMessage"`
	ImageMessage    *mediaAttachment `json:"imageMessage"`
	AudioMessage    *mediaAttachment `json:"audioMessage"`
	VideoMessage    *mediaAttachment `json:"videoMessage"`
	DocumentMessage *mediaAttachment `json:"documentMessage"`
}

type messageUpsertData struct {
	Key              messageKey   `json:"key"`
	PushName         string       `json:"pushName"`
	Message          *messageBody `json:"message"`
	MessageTimestamp int64        `json:"messageTimestamp"`
}

type connectionUpdateData struct {
	State string `json:"state"`
}

// Pipeline turns provider webhooks into persisted conversations and
// messages, and hands inbound text to the chatbot.
type Pipeline struct {
	store     storage.Store
	notifier  realtime.Notifier
	responder *AutoResponder
	log       *logrus.Logger
}

// NewPipeline creates the webhook ingestion pipeline.
func NewPipeline(store storage.Store, notifier realtime.Notifier, responder *AutoResponder, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		notifier:  notifier,
		responder: responder,
		log:       log,
	}
}

// ProcessWebhook ingests one Evolution webhook payload. Processing failures
// are reported in the result, never panicked or propagated; a malformed
// payload must not take the endpoint down.
func (p *Pipeline) ProcessWebhook(payload []byte) Result {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		p.log.Errorf("❌ Malformed webhook payload: %v", err)
		return Result{Success: false, Message: "invalid webhook payload"}
	}
	if envelope.Instance == "" {
		return Result{Success: false, Message: "webhook missing instance"}
	}

	switch parseEventKind(envelope.Event) {
	case eventMessageUpsert:
		var data messageUpsertData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			p.log.Errorf("❌ Malformed messages.upsert data: %v", err)
			return Result{Success: false, Message: "invalid message data"}
		}
		if err := p.handleIncomingMessage(envelope.Instance, &data); err != nil {
			p.log.Errorf("❌ Error handling incoming message: %v", err)
			return Result{Success: false, Message: err.Error()}
		}

	case eventConnectionUpdate:
		var data connectionUpdateData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			p.log.Errorf("❌ Malformed connection.update data: %v", err)
			return Result{Success: false, Message: "invalid connection data"}
		}
		p.handleConnectionUpdate(envelope.Instance, data.State)

	default:
		p.log.Debugf("💭 Ignoring webhook event %q from %s", envelope.Event, envelope.Instance)
	}

	return Result{Success: true, Message: "Webhook processed successfully"}
}

// extractContent pulls the text and media descriptor out of a message body.
// Returns ok=false when the body carries nothing ingestible.
func extractContent(body *messageBody) (content, messageType string, media *mediaAttachment, ok bool) {
	if body == nil {
		return "", "", nil, false
	}

	switch {
	case body.Conversation != "":
		return body.Conversation, models.MessageTypeText, nil, true
	case body.ExtendedText != nil && body.ExtendedText.Text != "":
		return body.ExtendedText.Text, models.MessageTypeText, nil, true
	case body.ImageMessage != nil:
		return mediaContent(body.ImageMessage, "[Imagem]"), models.MessageTypeImage, body.ImageMessage, true
	case body.AudioMessage != nil:
		return mediaContent(body.AudioMessage, "[Áudio]"), models.MessageTypeAudio, body.AudioMessage, true
	case body.VideoMessage != nil:
		return mediaContent(body.VideoMessage, "[Vídeo]"), models.MessageTypeVideo, body.VideoMessage, true
	case body.DocumentMessage != nil:
		return mediaContent(body.DocumentMessage, "[Documento]"), models.MessageTypeDocument, body.DocumentMessage, true
	default:
		return "", "", nil, false
	}
}

func mediaContent(media *mediaAttachment, fallback string) string {
	if media.Caption != "" {
		return media.Caption
	}
	return fallback
}

func (p *Pipeline) handleIncomingMessage(tenantID string, data *messageUpsertData) error {
	content, messageType, media, ok := extractContent(data.Message)
	if !ok {
		p.log.Debug("💭 Webhook message carries no ingestible content, skipping")
		return nil
	}
	if data.Key.ID == "" {
		return fmt.Errorf("message missing external id")
	}

	phone := NormalizePhone(StripJID(data.Key.RemoteJID))
	if phone == "" {
		return fmt.Errorf("message missing sender phone")
	}

	timestamp := time.Now()
	if data.MessageTimestamp > 0 {
		timestamp = time.Unix(data.MessageTimestamp, 0)
	}

	p.log.Infof("📨 Processing message from %s: %s", phone, content)

	client, err := p.store.GetClientByPhone(phone)
	if err != nil {
		client, err = p.store.CreateClient(&models.Client{
			Name:  clientName(data.PushName, phone),
			Phone: phone,
			Notes: "Criado automaticamente via Evolution API",
		})
		switch {
		case err == nil:
			p.log.Infof("👤 New client registered: %s", client.Name)
		case errors.Is(err, storage.ErrDuplicate):
			// Concurrent webhook already registered this phone.
			client, err = p.store.GetClientByPhone(phone)
			if err != nil {
				return fmt.Errorf("lookup client after duplicate: %w", err)
			}
		default:
			return fmt.Errorf("create client: %w", err)
		}
	}

	conv, isNew, err := p.store.CreateOpenConversation(&models.Conversation{
		ContactName:          client.Name,
		ContactPhone:         phone,
		ClientID:             client.ID,
		WhatsappConnectionID: tenantID,
		Status:               models.ConversationStatusWaiting,
		IsGroup:              false,
	})
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		Content:        content,
		MessageType:    messageType,
		Direction:      models.DirectionIncoming,
		IsRead:         false,
		ExternalID:     &data.Key.ID,
		Timestamp:      timestamp,
	}
	if media != nil && media.URL != "" {
		msg.MediaURL = &media.URL
	}

	saved, created, err := p.store.CreateMessage(msg)
	if err != nil {
		return fmt.Errorf("persist message: %w", err)
	}
	if !created {
		// Duplicate webhook delivery; everything downstream already ran.
		p.log.Debugf("💭 Duplicate message %s for conversation %s, skipping", data.Key.ID, conv.ID)
		return nil
	}

	if err := p.store.TouchConversation(conv.ID, content, timestamp, true); err != nil {
		p.log.Errorf("❌ Failed to update conversation preview: %v", err)
	}

	p.log.Infof("✅ Message processed for conversation %s", conv.ID)

	p.notifier.NotifyNewMessage(saved, conv)
	if isNew {
		p.notifier.NotifyNewConversation(conv)
	}

	p.responder.MaybeRespond(tenantID, conv, content, client.Name, isNew)
	return nil
}

func clientName(pushName, phone string) string {
	if pushName != "" {
		return pushName
	}
	return "Cliente " + phone
}

// handleConnectionUpdate reflects a provider state transition onto the
// stored connection. Updates for unknown instances are ignored.
func (p *Pipeline) handleConnectionUpdate(tenantID, state string) {
	conn, err := p.store.GetConnectionByTenant(tenantID)
	if err != nil {
		p.log.Debugf("💭 Connection update for unknown instance %s, ignoring", tenantID)
		return
	}

	conn.Status = models.MapProviderState(state)
	if err := p.store.UpdateConnection(conn); err != nil {
		p.log.Errorf("❌ Failed to update connection status: %v", err)
		return
	}

	p.log.Infof("🔄 Connection status updated for %s: %s", tenantID, conn.Status)
	p.notifier.NotifyWhatsAppStatus(conn)
}
