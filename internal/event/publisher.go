package event

import (
	"encoding/json"
	"log"
	"time"

	"github.com/streadway/amqp"
)

// Routing keys for speaking session lifecycle events.
const (
	SessionOpened    = "speaking.session.opened"
	SessionRestored  = "speaking.session.restored"
	RecordingStarted = "speaking.recording.started"
	AttemptAnalyzed  = "speaking.attempt.analyzed"
	AttemptRetried   = "speaking.attempt.retried"
	QuestionAdvanced = "speaking.question.advanced"
	SessionCompleted = "speaking.session.completed"
	SessionSuspended = "speaking.session.suspended"
	SessionErrored   = "speaking.session.errored"
)

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish emits one session event with the routing key as event type.
// Publishing is best effort: callers log broker failures and never let them
// interrupt the test-taking flow.
func (p *Publisher) Publish(eventType string, payload interface{}) error {
	event := map[string]interface{}{
		"type":      eventType,
		"payload":   payload,
		"timestamp": time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	log.Printf("[EVENT] %s", eventType)

	return p.channel.Publish(
		p.exchange,
		eventType, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
