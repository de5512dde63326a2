package services

import "strings"

// Intent names recognized by the chatbot.
const (
	IntentGreeting       = "greeting"
	IntentSupportRequest = "support_request"
	IntentUrgentRequest  = "urgent_request"
	IntentMenuRequest    = "menu_request"
	IntentThanks         = "thanks"
	IntentGoodbye        = "goodbye"
	IntentUnknown        = "unknown"
)

type intentRule struct {
	name     string
	keywords []string
}

// intentRules is checked in order; the first rule with a keyword contained in
// the message wins. Order matters: "ajuda" appears in both support_request
// and menu_request, and support wins.
var intentRules = []intentRule{
	{IntentGreeting, []string{"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "hello", "hi"}},
	{IntentSupportRequest, []string{"ajuda", "help", "suporte", "problema", "erro", "bug", "quebrou", "não funciona", "dúvida"}},
	{IntentUrgentRequest, []string{"urgente", "emergência", "emergencia", "rapido", "rápido", "urgent", "emergency"}},
	{IntentMenuRequest, []string{"menu", "opções", "opcoes", "options", "ajuda", "comandos"}},
	{IntentThanks, []string{"obrigado", "obrigada", "valeu", "thanks", "thank you", "brigado"}},
	{IntentGoodbye, []string{"tchau", "bye", "xau", "até", "goodbye", "see you", "flw"}},
}

// detectIntent classifies a message by substring matching against the ordered
// keyword table.
func detectIntent(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.name
			}
		}
	}
	return IntentUnknown
}
