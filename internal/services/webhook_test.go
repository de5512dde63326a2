package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

func newTestPipeline(t *testing.T) (*Pipeline, *storage.MemoryStore, *fakeGateway, *recordingNotifier) {
	t.Helper()
	store := storage.NewMemoryStore()
	gateway := &fakeGateway{}
	notifier := &recordingNotifier{}
	responder := NewAutoResponder(store, gateway, notifier, testLogger())
	responder.now = businessClock
	pipeline := NewPipeline(store, notifier, responder, testLogger())
	return pipeline, store, gateway, notifier
}

func messageUpsertPayload(instance, jid, messageID, text string) []byte {
	payload := map[string]interface{}{
		"event":    "messages.upsert",
		"instance": instance,
		"data": map[string]interface{}{
			"key": map[string]interface{}{
				"remoteJid": jid,
				"fromMe":    false,
				"id":        messageID,
			},
			"pushName":         "Maria",
			"message":          map[string]interface{}{"conversation": text},
			"messageTimestamp": 1756380000,
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestProcessWebhookMalformedPayload(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)

	result := pipeline.ProcessWebhook([]byte("{not json"))
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Message)
}

func TestProcessWebhookMissingInstance(t *testing.T) {
	pipeline, _, _, _ := newTestPipeline(t)

	result := pipeline.ProcessWebhook([]byte(`{"event":"messages.upsert","data":{}}`))
	assert.False(t, result.Success)
}

func TestProcessWebhookUnknownEventAcks(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	result := pipeline.ProcessWebhook([]byte(`{"event":"presence.update","instance":"tenant-1","data":{}}`))
	assert.True(t, result.Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestIncomingMessageCreatesClientConversationAndMessage(t *testing.T) {
	pipeline, store, _, notifier := newTestPipeline(t)

	result := pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi, preciso de ajuda"))
	require.True(t, result.Success)

	// Phone is JID-stripped and country-code normalized.
	client, err := store.GetClientByPhone("5511999999999")
	require.NoError(t, err)
	assert.Equal(t, "Maria", client.Name)
	assert.Equal(t, "Criado automaticamente via Evolution API", client.Notes)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	conv := convs[0]
	assert.Equal(t, models.ConversationStatusWaiting, conv.Status)
	assert.Equal(t, "tenant-1", conv.WhatsappConnectionID)
	assert.Equal(t, client.ID, conv.ClientID)
	assert.Equal(t, "oi, preciso de ajuda", conv.LastMessage)
	assert.Equal(t, 1, conv.UnreadCount)

	msgs, err := store.GetMessagesByConversation(conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.DirectionIncoming, msgs[0].Direction)
	assert.Equal(t, models.MessageTypeText, msgs[0].MessageType)
	assert.False(t, msgs[0].IsRead)
	require.NotNil(t, msgs[0].ExternalID)
	assert.Equal(t, "msg-1", *msgs[0].ExternalID)

	events := notifier.recorded()
	assert.Contains(t, events, "new_message")
	assert.Contains(t, events, "new_conversation")
}

func TestDuplicateWebhookDeliveryIsIdempotent(t *testing.T) {
	pipeline, store, _, notifier := newTestPipeline(t)

	payload := messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi")
	require.True(t, pipeline.ProcessWebhook(payload).Success)
	require.True(t, pipeline.ProcessWebhook(payload).Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)

	msgs, err := store.GetMessagesByConversation(convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// The duplicate must not re-notify or re-count.
	assert.Equal(t, 1, convs[0].UnreadCount)
	count := 0
	for _, e := range notifier.recorded() {
		if e == "new_message" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSecondMessageReusesOpenConversation(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi")).Success)
	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-2", "ainda estou aqui")).Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "ainda estou aqui", convs[0].LastMessage)
}

func TestClosedConversationGetsNewOne(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi")).Success)

	convs, _ := store.GetAllConversations()
	require.Len(t, convs, 1)
	require.NoError(t, store.UpdateConversationStatus(convs[0].ID, models.ConversationStatusCompleted))

	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-2", "voltei")).Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestSameContactDifferentTenantsGetSeparateConversations(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi")).Success)
	require.True(t, pipeline.ProcessWebhook(messageUpsertPayload("tenant-2", "11999999999@s.whatsapp.net", "msg-2", "oi")).Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}

func TestConcurrentWebhooksCreateOneConversation(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	results := make([]Result, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", fmt.Sprintf("msg-%d", i), "oi")
			results[i] = pipeline.ProcessWebhook(payload)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		assert.True(t, res.Success, "delivery %d should recover when a concurrent delivery registers the client first", i)
	}

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)

	msgs, err := store.GetMessagesByConversation(convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 20)

	clients, err := store.GetAllClients()
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestMediaMessageIngestion(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	payload := map[string]interface{}{
		"event":    "messages.upsert",
		"instance": "tenant-1",
		"data": map[string]interface{}{
			"key": map[string]interface{}{
				"remoteJid": "11999999999@s.whatsapp.net",
				"id":        "msg-media",
			},
			"message": map[string]interface{}{
				"imageMessage": map[string]interface{}{
					"url":     "https://cdn.example.com/foto.jpg",
					"caption": "segue a foto do erro",
				},
			},
		},
	}
	raw, _ := json.Marshal(payload)
	require.True(t, pipeline.ProcessWebhook(raw).Success)

	convs, _ := store.GetAllConversations()
	require.Len(t, convs, 1)
	msgs, err := store.GetMessagesByConversation(convs[0].ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeImage, msgs[0].MessageType)
	assert.Equal(t, "segue a foto do erro", msgs[0].Content)
	require.NotNil(t, msgs[0].MediaURL)
	assert.Equal(t, "https://cdn.example.com/foto.jpg", *msgs[0].MediaURL)
}

func TestMediaMessageWithoutCaptionUsesFallback(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	payload := []byte(`{
		"event": "messages.upsert",
		"instance": "tenant-1",
		"data": {
			"key": {"remoteJid": "11999999999@s.whatsapp.net", "id": "msg-audio"},
			"message": {"audioMessage": {"url": "https://cdn.example.com/voz.ogg"}}
		}
	}`)
	require.True(t, pipeline.ProcessWebhook(payload).Success)

	convs, _ := store.GetAllConversations()
	require.Len(t, convs, 1)
	msgs, _ := store.GetMessagesByConversation(convs[0].ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MessageTypeAudio, msgs[0].MessageType)
	assert.Equal(t, "[Áudio]", msgs[0].Content)
}

func TestEmptyMessageBodyIsSkipped(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	payload := []byte(`{
		"event": "messages.upsert",
		"instance": "tenant-1",
		"data": {
			"key": {"remoteJid": "11999999999@s.whatsapp.net", "id": "msg-x"},
			"message": {}
		}
	}`)
	result := pipeline.ProcessWebhook(payload)
	assert.True(t, result.Success)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestConnectionUpdateMapsStates(t *testing.T) {
	pipeline, store, _, notifier := newTestPipeline(t)

	conn, err := store.CreateConnection(&models.WhatsAppConnection{
		Name:     "Principal",
		TenantID: "tenant-1",
	})
	require.NoError(t, err)

	tests := []struct {
		state string
		want  string
	}{
		{"open", models.ConnectionStatusConnected},
		{"connecting", models.ConnectionStatusConnecting},
		{"close", models.ConnectionStatusDisconnected},
		{"banana", models.ConnectionStatusDisconnected},
	}

	for _, tt := range tests {
		payload := []byte(fmt.Sprintf(`{"event":"connection.update","instance":"tenant-1","data":{"state":%q}}`, tt.state))
		require.True(t, pipeline.ProcessWebhook(payload).Success)

		updated, err := store.GetConnection(conn.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, updated.Status, "state %q", tt.state)
	}

	assert.Contains(t, notifier.recorded(), "whatsapp_status")
}

func TestConnectionUpdateForUnknownInstanceIsNoop(t *testing.T) {
	pipeline, _, _, notifier := newTestPipeline(t)

	payload := []byte(`{"event":"connection.update","instance":"ghost","data":{"state":"open"}}`)
	result := pipeline.ProcessWebhook(payload)
	assert.True(t, result.Success)
	assert.NotContains(t, notifier.recorded(), "whatsapp_status")
}

func TestWahaWebhookMessage(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	payload := []byte(`{
		"event": "message",
		"session": "default",
		"payload": {
			"id": "waha-msg-1",
			"from": "11999999999@c.us",
			"body": "oi pelo waha",
			"timestamp": 1756380000
		}
	}`)
	result := pipeline.ProcessWahaWebhook("tenant-1", payload)
	require.True(t, result.Success)

	client, err := store.GetClientByPhone("5511999999999")
	require.NoError(t, err)
	assert.NotEmpty(t, client.ID)

	convs, _ := store.GetAllConversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "tenant-1", convs[0].WhatsappConnectionID)
}

func TestEndToEndChatbotReply(t *testing.T) {
	pipeline, store, gateway, _ := newTestPipeline(t)

	_, err := store.SaveAIAgentConfig(&models.AIAgentConfig{
		TenantID:       "tenant-1",
		Mode:           models.AIModeChatbot,
		IsEnabled:      true,
		WelcomeMessage: "Olá {{nome_cliente}}, bem-vindo à {{nome_empresa}}!",
		ResponseDelay:  1,
	})
	require.NoError(t, err)

	result := pipeline.ProcessWebhook(messageUpsertPayload("tenant-1", "11999999999@s.whatsapp.net", "msg-1", "oi"))
	require.True(t, result.Success)

	// The ack returned immediately; the reply arrives after the delay.
	assert.Empty(t, gateway.sentMessages())
	assert.Eventually(t, func() bool {
		return len(gateway.sentMessages()) == 1
	}, 3*time.Second, 50*time.Millisecond)

	sent := gateway.sentMessages()[0]
	assert.Equal(t, "5511999999999", sent.Number)
	assert.Equal(t, "Olá Maria, bem-vindo à Fi.V App!", sent.Text)

	// The bot reply lands in the conversation as a read outgoing message.
	convs, _ := store.GetAllConversations()
	require.Len(t, convs, 1)
	assert.Eventually(t, func() bool {
		msgs, _ := store.GetMessagesByConversation(convs[0].ID)
		return len(msgs) == 2
	}, 3*time.Second, 50*time.Millisecond)

	msgs, _ := store.GetMessagesByConversation(convs[0].ID)
	assert.Equal(t, models.DirectionIncoming, msgs[0].Direction)
	assert.Equal(t, models.DirectionOutgoing, msgs[1].Direction)
	assert.True(t, msgs[1].IsRead)
}

func TestWahaWebhookSessionStatus(t *testing.T) {
	pipeline, store, _, _ := newTestPipeline(t)

	conn, err := store.CreateConnection(&models.WhatsAppConnection{
		Name:     "Principal",
		TenantID: "tenant-1",
	})
	require.NoError(t, err)

	payload := []byte(`{"event":"session.status","session":"default","payload":{"status":"WORKING"}}`)
	require.True(t, pipeline.ProcessWahaWebhook("tenant-1", payload).Success)

	updated, err := store.GetConnection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusConnected, updated.Status)
}
