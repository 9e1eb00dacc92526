package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует события выполнения плейбука в topic exchange.
//
// Ключ маршрутизации — тип события: потребители подписываются
// на "playbook_*", "step_*" или "#".
type Publisher struct {
	conn     *Connection
	exchange string
	logger   *slog.Logger
}

// Envelope — конверт события в очереди.
type Envelope struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Kind — тип события.
	Kind string `json:"kind"`

	// Payload — само событие.
	Payload any `json:"payload"`

	// Timestamp — время публикации.
	Timestamp time.Time `json:"timestamp"`
}

// NewPublisher создаёт Publisher и объявляет exchange.
func NewPublisher(conn *Connection, exchange string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := conn.WithChannel(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
	})
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, exchange: exchange, logger: logger}, nil
}

// Publish публикует событие kind с полезной нагрузкой payload.
func (p *Publisher) Publish(ctx context.Context, kind string, payload any) error {
	envelope := Envelope{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			p.exchange,
			kind, // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    envelope.ID,
				Timestamp:    envelope.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, kind, err)
		}

		p.logger.Debug("published event",
			"exchange", p.exchange,
			"routing_key", kind,
			"message_id", envelope.ID,
		)
		return nil
	})
}
