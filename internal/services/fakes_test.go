package services

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type sentMessage struct {
	Instance string
	Number   string
	Text     string
}

// fakeGateway records sends and can be told to fail them.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	failSend bool
}

func (f *fakeGateway) SendText(instanceName, number, text string) SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return SendResult{Success: false, Error: "provider unavailable"}
	}
	f.sent = append(f.sent, sentMessage{Instance: instanceName, Number: number, Text: text})
	return SendResult{Success: true, MessageID: "wamid-test"}
}

func (f *fakeGateway) SendMedia(instanceName, number string, media Media) SendResult {
	return f.SendText(instanceName, number, media.Caption)
}

func (f *fakeGateway) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeGateway) CreateInstance(string) InstanceResult  { return InstanceResult{Success: true} }
func (f *fakeGateway) ConnectInstance(string) InstanceResult { return InstanceResult{Success: true} }
func (f *fakeGateway) ConnectionState(string) InstanceResult {
	return InstanceResult{Success: true, State: "open"}
}
func (f *fakeGateway) DeleteInstance(string) InstanceResult { return InstanceResult{Success: true} }
func (f *fakeGateway) FetchInstances() InstancesResult      { return InstancesResult{Success: true} }
func (f *fakeGateway) Health() HealthResult                 { return HealthResult{Healthy: true} }

// recordingNotifier captures event types for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingNotifier) NotifyNewMessage(*models.Message, *models.Conversation) {
	r.record("new_message")
}

func (r *recordingNotifier) NotifyNewConversation(*models.Conversation) {
	r.record("new_conversation")
}

func (r *recordingNotifier) NotifyConversationStatusChange(*models.Conversation) {
	r.record("conversation_status_change")
}

func (r *recordingNotifier) NotifyWhatsAppStatus(*models.WhatsAppConnection) {
	r.record("whatsapp_status")
}
