package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureServer records the last JSON body posted to it and answers with the
// given response.
func captureServer(t *testing.T, response string) (*httptest.Server, *map[string]interface{}) {
	t.Helper()

	captured := &map[string]interface{}{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestEvolutionSendTextNormalizesNumber(t *testing.T) {
	server, captured := captureServer(t, `{"key":{"id":"wamid-1"}}`)

	gateway := NewEvolutionService(server.URL, "test-key", testLogger())
	result := gateway.SendText("tenant-1", "(11) 99999-9999", "oi")

	require.True(t, result.Success)
	assert.Equal(t, "wamid-1", result.MessageID)
	assert.Equal(t, "5511999999999", (*captured)["number"])
	assert.Equal(t, "oi", (*captured)["text"])
}

func TestEvolutionSendMediaNormalizesNumber(t *testing.T) {
	server, captured := captureServer(t, `{"key":{"id":"wamid-2"}}`)

	gateway := NewEvolutionService(server.URL, "test-key", testLogger())
	result := gateway.SendMedia("tenant-1", "11 98888-7777", Media{
		Type:    "image",
		URL:     "https://cdn.example.com/foto.jpg",
		Caption: "segue a foto",
	})

	require.True(t, result.Success)
	assert.Equal(t, "5511988887777", (*captured)["number"])
}

func TestEvolutionSendTextAlreadyNormalized(t *testing.T) {
	server, captured := captureServer(t, `{"key":{"id":"wamid-3"}}`)

	gateway := NewEvolutionService(server.URL, "test-key", testLogger())
	result := gateway.SendText("tenant-1", "5511999999999", "oi")

	require.True(t, result.Success)
	assert.Equal(t, "5511999999999", (*captured)["number"])
}

func TestWahaSendTextNormalizesNumber(t *testing.T) {
	server, captured := captureServer(t, `{"id":"waha-1"}`)

	gateway := NewWahaService(server.URL, "test-key", testLogger())
	result := gateway.SendText("tenant-1", "(11) 99999-9999", "oi")

	require.True(t, result.Success)
	assert.Equal(t, "waha-1", result.MessageID)
	assert.Equal(t, "5511999999999@c.us", (*captured)["to"])
}

func TestWahaSendMediaNormalizesNumber(t *testing.T) {
	server, captured := captureServer(t, `{"id":"waha-2"}`)

	gateway := NewWahaService(server.URL, "test-key", testLogger())
	result := gateway.SendMedia("tenant-1", "(11) 98888-7777", Media{
		Type: "document",
		URL:  "https://cdn.example.com/contrato.pdf",
	})

	require.True(t, result.Success)
	assert.Equal(t, "5511988887777@c.us", (*captured)["to"])
}
