package services

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
	"github.com/fivlabs/fivapp-backend/internal/realtime"
	"github.com/fivlabs/fivapp-backend/internal/storage"
)

// configCacheTTL bounds how stale a tenant's chatbot config may be. Webhook
// bursts would otherwise hit the database once per message.
const configCacheTTL = 30 * time.Second

// AutoResponder generates and schedules chatbot replies to inbound messages.
// Replies go out after the configured delay through cancellable timers, so an
// agent taking over (or closing) a conversation suppresses the pending bot
// reply.
type AutoResponder struct {
	store    storage.Store
	gateway  Gateway
	notifier realtime.Notifier
	log      *logrus.Logger

	configCache *cache.Cache
	companyName string

	// now is swapped in tests to pin business-hours decisions.
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewAutoResponder creates the chatbot responder.
func NewAutoResponder(store storage.Store, gateway Gateway, notifier realtime.Notifier, log *logrus.Logger) *AutoResponder {
	companyName := os.Getenv("COMPANY_NAME")
	if companyName == "" {
		companyName = "Fi.V App"
	}

	return &AutoResponder{
		store:       store,
		gateway:     gateway,
		notifier:    notifier,
		log:         log,
		configCache: cache.New(configCacheTTL, time.Minute),
		companyName: companyName,
		now:         time.Now,
		pending:     make(map[string]*time.Timer),
	}
}

// config returns the tenant's chatbot config, nil when none exists.
func (r *AutoResponder) config(tenantID string) *models.AIAgentConfig {
	if cached, found := r.configCache.Get(tenantID); found {
		return cached.(*models.AIAgentConfig)
	}

	cfg, err := r.store.GetAIAgentConfig(tenantID)
	if err != nil {
		cfg = nil
	}
	r.configCache.Set(tenantID, cfg, configCacheTTL)
	return cfg
}

// InvalidateConfig drops the cached config for a tenant after an update.
func (r *AutoResponder) InvalidateConfig(tenantID string) {
	r.configCache.Delete(tenantID)
}

// MaybeRespond decides whether the chatbot should reply to an inbound message
// and, if so, schedules the reply. Safe to call from the webhook goroutine;
// it never returns an error because auto-response failures must not affect
// ingestion.
func (r *AutoResponder) MaybeRespond(tenantID string, conv *models.Conversation, messageContent, contactName string, isNewConversation bool) {
	cfg := r.config(tenantID)
	if cfg == nil || !cfg.IsEnabled || cfg.Mode != models.AIModeChatbot {
		r.log.Debug("💭 Chatbot is disabled, skipping auto response")
		return
	}

	var response string
	if isNewConversation && cfg.WelcomeMessage != "" {
		response = r.renderPlaceholders(cfg.WelcomeMessage, contactName, conv)
	} else {
		response = r.contextualResponse(messageContent, contactName, conv)
	}
	if response == "" {
		return
	}

	delay := cfg.ResponseDelay
	if delay <= 0 {
		delay = 3
	}

	preview := truncatePreview(response, 50)
	r.log.Infof("🤖 Scheduling chatbot response for %s: %q", contactName, preview)

	r.schedule(tenantID, conv.ID, conv.ContactPhone, response, time.Duration(delay)*time.Second)
}

// truncatePreview shortens a response for logging without splitting a
// multi-byte character.
func truncatePreview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// schedule arms a cancellable timer for the conversation. A newer inbound
// message replaces any pending reply.
func (r *AutoResponder) schedule(tenantID, conversationID, phone, response string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, exists := r.pending[conversationID]; exists {
		timer.Stop()
	}

	r.pending[conversationID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.pending, conversationID)
		r.mu.Unlock()

		r.deliver(tenantID, conversationID, phone, response)
	})
}

// Cancel drops the pending reply for a conversation, if any. Called when an
// agent sends a message or the conversation reaches a terminal status.
func (r *AutoResponder) Cancel(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, exists := r.pending[conversationID]; exists {
		timer.Stop()
		delete(r.pending, conversationID)
		r.log.Debugf("🚫 Cancelled pending chatbot response for conversation %s", conversationID)
	}
}

// deliver runs on the timer goroutine after the delay has elapsed.
func (r *AutoResponder) deliver(tenantID, conversationID, phone, response string) {
	// The conversation may have been closed while the reply was pending.
	conv, err := r.store.GetConversation(conversationID)
	if err != nil || !conv.IsOpen() {
		r.log.Debugf("💭 Conversation %s no longer open, dropping chatbot response", conversationID)
		return
	}

	result := r.gateway.SendText(tenantID, phone, response)
	if !result.Success {
		r.log.Errorf("❌ Failed to send chatbot response: %s", result.Error)
		return
	}

	msg := &models.Message{
		ConversationID: conversationID,
		Content:        response,
		MessageType:    models.MessageTypeText,
		Direction:      models.DirectionOutgoing,
		IsRead:         true,
	}
	if result.MessageID != "" {
		msg.ExternalID = &result.MessageID
	}

	saved, _, err := r.store.CreateMessage(msg)
	if err != nil {
		r.log.Errorf("❌ Failed to persist chatbot response: %v", err)
		return
	}

	if err := r.store.TouchConversation(conversationID, response, saved.Timestamp, false); err != nil {
		r.log.Errorf("❌ Failed to update conversation preview: %v", err)
	}

	r.notifier.NotifyNewMessage(saved, conv)
	r.log.Info("✅ Chatbot response sent")
}

// contextualResponse maps the detected intent of an existing-conversation
// message onto a canned Portuguese reply.
func (r *AutoResponder) contextualResponse(messageContent, contactName string, conv *models.Conversation) string {
	businessHours := r.isBusinessHours()

	switch detectIntent(messageContent) {
	case IntentGreeting:
		return r.greetingResponse(contactName, businessHours)

	case IntentSupportRequest:
		status := "Um atendente irá ajudá-lo em breve."
		if !businessHours {
			status = "Estamos fora do horário de atendimento, mas sua mensagem foi registrada e responderemos em breve."
		}
		return fmt.Sprintf("Compreendo que você precisa de suporte, %s! %s\n\nDigite *menu* para ver as opções disponíveis.", contactName, status)

	case IntentUrgentRequest:
		r.escalate(conv)
		status := "e você será atendido o mais breve possível."
		if !businessHours {
			status = "e será a primeira a ser atendida quando voltarmos."
		}
		return fmt.Sprintf("⚡ Entendi que é urgente, %s! Sua mensagem foi marcada como prioritária %s", contactName, status)

	case IntentMenuRequest:
		return fmt.Sprintf("Olá %s! 👋\n\n📋 *Menu Principal:*\n\n1️⃣ Suporte Técnico\n2️⃣ Vendas\n3️⃣ Financeiro\n4️⃣ Atendimento Geral\n\n_Digite o número da opção ou descreva seu problema_", contactName)

	case IntentThanks:
		return fmt.Sprintf("De nada, %s! 😊 Fico feliz em ajudar! Se precisar de mais alguma coisa, estarei aqui.", contactName)

	case IntentGoodbye:
		return fmt.Sprintf("Até mais, %s! 👋 Volte sempre que precisar. Tenha um ótimo dia!", contactName)

	default:
		if businessHours {
			return fmt.Sprintf("Olá %s! 😊 Recebi sua mensagem e um atendente irá ajudá-lo em breve.\n\nDigite *menu* para ver as opções de atendimento.", contactName)
		}
		return fmt.Sprintf("Olá %s! 🌙 Estamos fora do horário comercial (Seg-Sex, 9h-18h), mas sua mensagem foi registrada.\n\nRetornaremos seu contato no próximo dia útil.\n\nDigite *menu* para opções de autoatendimento.", contactName)
	}
}

// escalate marks the conversation as urgent by moving it to in_progress.
func (r *AutoResponder) escalate(conv *models.Conversation) {
	if err := r.store.UpdateConversationStatus(conv.ID, models.ConversationStatusInProgress); err != nil {
		r.log.Errorf("❌ Failed to mark conversation as urgent: %v", err)
		return
	}
	conv.Status = models.ConversationStatusInProgress
	r.notifier.NotifyConversationStatusChange(conv)
}

func (r *AutoResponder) greetingResponse(contactName string, businessHours bool) string {
	hour := r.now().Hour()

	var greeting string
	switch {
	case hour < 12:
		greeting = "Bom dia"
	case hour < 18:
		greeting = "Boa tarde"
	default:
		greeting = "Boa noite"
	}

	status := "Estamos online e prontos para ajudar!"
	if !businessHours {
		status = "Estamos fora do horário comercial, mas sua mensagem foi recebida."
	}

	return fmt.Sprintf("%s, %s! 👋\n\n%s\n\nDigite *menu* para ver as opções disponíveis.", greeting, contactName, status)
}

// isBusinessHours reports Monday through Friday, 9:00 to 17:59 local time.
func (r *AutoResponder) isBusinessHours() bool {
	now := r.now()
	day := now.Weekday()
	hour := now.Hour()
	return day >= time.Monday && day <= time.Friday && hour >= 9 && hour < 18
}

// renderPlaceholders substitutes template variables in a configured message.
func (r *AutoResponder) renderPlaceholders(message, contactName string, conv *models.Conversation) string {
	protocol := conv.ID
	if len(protocol) > 8 {
		protocol = protocol[:8]
	}
	protocol = "#" + strings.ToUpper(protocol)

	queueName := "Atendimento Geral"
	if conv.QueueID != nil {
		if queue, err := r.store.GetQueue(*conv.QueueID); err == nil {
			queueName = queue.Name
		}
	}

	agentName := "Atendente"
	if conv.AssignedAgentID != nil {
		if agent, err := r.store.GetUser(*conv.AssignedAgentID); err == nil {
			agentName = agent.Name
		}
	}

	replacer := strings.NewReplacer(
		"{{nome_cliente}}", contactName,
		"{{nome_empresa}}", r.companyName,
		"{{protocolo}}", protocol,
		"{{data_abertura}}", r.now().Format("02/01/2006 15:04:05"),
		"{{fila}}", queueName,
		"{{agente}}", agentName,
		"{{horario_atendimento}}", "Segunda a Sexta, 9h às 18h",
	)
	return replacer.Replace(message)
}
