package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
	"github.com/danielolaru91/AuthSystem/internal/mail"
)

// Publisher is a mail.Mailer that hands messages to the broker instead of
// sending them.  Each publish opens its own connection; account mail is
// low volume.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
}

var _ mail.Mailer = (*Publisher)(nil)

func NewPublisher(cfg config.AMQPConfig, log *zap.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("amqp url is required for the queue mail transport")
	}
	q := cfg.Queue
	if q == "" {
		q = DefaultQueue
	}
	return &Publisher{url: cfg.URL, queue: q, log: log}, nil
}

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "mail.outbound"

func (p *Publisher) Send(ctx context.Context, m mail.Message) error {
	body, err := json.Marshal(eventFor(m, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal mail event: %w", err)
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("publish mail event: %w", err)
	}
	p.log.Debug("mail queued", zap.String("queue", p.queue), zap.String("subject", m.Subject))
	return nil
}

// declare makes sure the durable queue exists.  Idempotent.
func declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
