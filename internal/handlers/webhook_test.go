package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/services"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

func newWebhookApp(t *testing.T) (*fiber.App, *storage.MemoryStore) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := storage.NewMemoryStore()
	gateway := services.NewEvolutionService("http://evolution.invalid", "test-key", log)
	responder := services.NewAutoResponder(store, gateway, realtime.NopNotifier{}, log)
	pipeline := services.NewPipeline(store, realtime.NopNotifier{}, responder, log)

	handler := NewWebhookHandler(pipeline, log)

	app := fiber.New()
	app.Post("/webhook/evolution", handler.HandleEvolution)
	app.Post("/webhook/waha/:tenantId", handler.HandleWaha)
	return app, store
}

func TestHandleEvolutionWebhookOK(t *testing.T) {
	app, store := newWebhookApp(t)

	body := `{
		"event": "messages.upsert",
		"instance": "tenant-1",
		"data": {
			"key": {"remoteJid": "11999999999@s.whatsapp.net", "id": "msg-1"},
			"pushName": "Maria",
			"message": {"conversation": "oi"}
		}
	}`
	req := httptest.NewRequest("POST", "/webhook/evolution", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, true, result["success"])

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestHandleEvolutionWebhookMalformed(t *testing.T) {
	app, _ := newWebhookApp(t)

	req := httptest.NewRequest("POST", "/webhook/evolution", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, false, result["success"])
}

func TestHandleEvolutionWebhookUnknownEventAcks(t *testing.T) {
	app, _ := newWebhookApp(t)

	body := `{"event": "call.offer", "instance": "tenant-1", "data": {}}`
	req := httptest.NewRequest("POST", "/webhook/evolution", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHandleWahaWebhook(t *testing.T) {
	app, store := newWebhookApp(t)

	body := `{
		"event": "message",
		"session": "default",
		"payload": {"id": "w-1", "from": "11999999999@c.us", "body": "oi", "timestamp": 1756380000}
	}`
	req := httptest.NewRequest("POST", "/webhook/waha/tenant-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	convs, err := store.GetAllConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "tenant-1", convs[0].WhatsappConnectionID)
}
