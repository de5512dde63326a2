package services

import (
	"encoding/json"
)

// wahaEnvelope is the outer shape of a WAHA webhook. WAHA core runs a single
// shared session, so the tenant is resolved from the session owner, not from
// the payload.
type wahaEnvelope struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

type wahaMessagePayload struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromMe    bool   `json:"fromMe"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	HasMedia  bool   `json:"hasMedia"`
	Media     *struct {
		URL      string `json:"url"`
		Mimetype string `json:"mimetype"`
	} `json:"media"`
}

type wahaStatusPayload struct {
	Status string `json:"status"`
}

// ProcessWahaWebhook translates a WAHA webhook into the common ingestion
// path. The tenantID is the connection that owns the shared WAHA session.
func (p *Pipeline) ProcessWahaWebhook(tenantID string, payload []byte) Result {
	var envelope wahaEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		p.log.Errorf("❌ Malformed WAHA webhook payload: %v", err)
		return Result{Success: false, Message: "invalid webhook payload"}
	}

	switch envelope.Event {
	case "message":
		var msg wahaMessagePayload
		if err := json.Unmarshal(envelope.Payload, &msg); err != nil {
			p.log.Errorf("❌ Malformed WAHA message payload: %v", err)
			return Result{Success: false, Message: "invalid message data"}
		}

		data := &messageUpsertData{
			Key: messageKey{
				RemoteJID: msg.From,
				FromMe:    msg.FromMe,
				ID:        msg.ID,
			},
			Message:          &messageBody{Conversation: msg.Body},
			MessageTimestamp: msg.Timestamp,
		}
		if msg.HasMedia && msg.Media != nil {
			data.Message = &messageBody{
				DocumentMessage: &mediaAttachment{
					URL:     msg.Media.URL,
					Caption: msg.Body,
				},
			}
		}
		if err := p.handleIncomingMessage(tenantID, data); err != nil {
			p.log.Errorf("❌ Error handling WAHA message: %v", err)
			return Result{Success: false, Message: err.Error()}
		}

	case "session.status":
		var status wahaStatusPayload
		if err := json.Unmarshal(envelope.Payload, &status); err != nil {
			p.log.Errorf("❌ Malformed WAHA status payload: %v", err)
			return Result{Success: false, Message: "invalid status data"}
		}

		state := "close"
		switch status.Status {
		case "WORKING":
			state = "open"
		case "STARTING", "SCAN_QR_CODE":
			state = "connecting"
		}
		p.handleConnectionUpdate(tenantID, state)

	default:
		p.log.Debugf("💭 Ignoring WAHA event %q", envelope.Event)
	}

	return Result{Success: true, Message: "Webhook processed successfully"}
}
