package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Oi, tudo bem?", IntentGreeting},
		{"bom dia", IntentGreeting},
		{"hello there", IntentGreeting},
		{"preciso de ajuda com um problema", IntentSupportRequest},
		{"o sistema quebrou", IntentSupportRequest},
		{"isso é urgente!", IntentUrgentRequest},
		{"emergencia", IntentUrgentRequest},
		{"quero ver o menu", IntentMenuRequest},
		{"opções", IntentMenuRequest},
		{"muito obrigado", IntentThanks},
		{"valeu", IntentThanks},
		{"tchau, até logo", IntentGoodbye},
		{"flw", IntentGoodbye},
		{"qual o preço do plano anual?", IntentUnknown},
		{"", IntentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, detectIntent(tt.message))
		})
	}
}

func TestDetectIntentOrderMatters(t *testing.T) {
	// "ajuda" appears in both support and menu keyword lists; the support
	// rule comes first and must win.
	assert.Equal(t, IntentSupportRequest, detectIntent("ajuda"))

	// Greeting outranks everything: "oi" inside a support message still
	// matches greeting first.
	assert.Equal(t, IntentGreeting, detectIntent("oi, tenho um problema"))
}

func TestDetectIntentCaseInsensitive(t *testing.T) {
	assert.Equal(t, IntentGreeting, detectIntent("BOM DIA"))
	assert.Equal(t, IntentUrgentRequest, detectIntent("URGENTE"))
}
