// Package deadletter publishes failed turns to a broker exchange for
// offline diagnosis. When no broker is configured a no-op fallback keeps
// the safe-net path free of hard dependencies.
package deadletter

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"grassroot-chatbot/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// FailedTurn is the dead-letter payload: enough to replay the turn by hand,
// with credentials already stripped.
type FailedTurn struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Domain    string    `json:"domain,omitempty"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher dispatches failed turns. Publish must never block the reply
// path for long and must never panic.
type Publisher interface {
	Publish(ctx context.Context, failure FailedTurn) error
	Close() error
}

// bearer tokens and basic-auth style credentials embedded in error strings
var credentialPattern = regexp.MustCompile(`(?i)(authorization:\s*(?:bearer\s+)?|bearer\s+|token[=:]\s*)\S+`)

// Scrub removes embedded credentials from an error message before it
// leaves the process.
func Scrub(message string) string {
	return credentialPattern.ReplaceAllString(message, "$1[redacted]")
}

type rmqPublisher struct {
	conn       *amqp091.Connection
	exchange   string
	routingKey string
	log        *logger.Logger
}

// New connects to the broker and declares the dead-letter exchange.
func New(url, exchange, routingKey string, log *logger.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &rmqPublisher{
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		log:        log,
	}, nil
}

func (p *rmqPublisher) Publish(ctx context.Context, failure FailedTurn) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	failure.Error = Scrub(failure.Error)
	if failure.ID == "" {
		failure.ID = uuid.NewString()
	}
	body, err := json.Marshal(failure)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, p.routingKey, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    failure.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		p.log.Info("dead-lettered failed turn",
			"id", failure.ID,
			"routing_key", p.routingKey,
		)
	}
	return err
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// FallbackPublisher logs failures locally when no broker is configured.
type FallbackPublisher struct {
	log *logger.Logger
}

func NewFallback(log *logger.Logger) Publisher {
	return &FallbackPublisher{log: log}
}

func (p *FallbackPublisher) Publish(_ context.Context, failure FailedTurn) error {
	p.log.Warn("dead-letter broker absent, logging failed turn",
		"sender_id", failure.SenderID,
		"domain", failure.Domain,
		"error", Scrub(failure.Error),
	)
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}
