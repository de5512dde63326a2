package realtime

import (
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/fivlabs/fivapp-backend/internal/models"
)

// AMQPNotifier mirrors realtime events onto a RabbitMQ queue so external
// consumers (analytics, CRM sync) can follow the conversation stream.
// Publish failures are logged and swallowed; the broker is never allowed to
// break ingestion.
type AMQPNotifier struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	log     *logrus.Logger
}

// NewAMQPNotifier connects to RabbitMQ and declares the event queue.
func NewAMQPNotifier(url, queue string, log *logrus.Logger) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, err
	}

	log.Infof("🐰 RabbitMQ connected, publishing events to queue %s", queue)
	return &AMQPNotifier{conn: conn, channel: channel, queue: queue, log: log}, nil
}

// Close releases the channel and connection.
func (a *AMQPNotifier) Close() {
	if a.channel != nil {
		_ = a.channel.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func (a *AMQPNotifier) publish(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		a.log.Errorf("❌ RabbitMQ marshal error: %v", err)
		return
	}

	err = a.channel.Publish(
		"",      // default exchange
		a.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		a.log.Errorf("❌ RabbitMQ publish failed for %s: %v", event.Type, err)
	}
}

func (a *AMQPNotifier) NotifyNewMessage(msg *models.Message, conv *models.Conversation) {
	a.publish(NewEvent(EventNewMessage, map[string]interface{}{
		"message":      msg,
		"conversation": conv,
	}))
}

func (a *AMQPNotifier) NotifyNewConversation(conv *models.Conversation) {
	a.publish(NewEvent(EventNewConversation, conv))
}

func (a *AMQPNotifier) NotifyConversationStatusChange(conv *models.Conversation) {
	a.publish(NewEvent(EventConversationStatusChange, map[string]interface{}{
		"conversation_id": conv.ID,
		"status":          conv.Status,
	}))
}

func (a *AMQPNotifier) NotifyWhatsAppStatus(conn *models.WhatsAppConnection) {
	a.publish(NewEvent(EventWhatsAppStatus, map[string]interface{}{
		"connection_id": conn.ID,
		"tenant_id":     conn.TenantID,
		"status":        conn.Status,
	}))
}
