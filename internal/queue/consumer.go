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

// Consumer delivers queued mail through a Mailer.
type Consumer struct {
	url    string
	queue  string
	mailer mail.Mailer
	log    *zap.Logger
}

func NewConsumer(cfg config.AMQPConfig, mailer mail.Mailer, log *zap.Logger) *Consumer {
	q := cfg.Queue
	if q == "" {
		q = DefaultQueue
	}
	return &Consumer{url: cfg.URL, queue: q, mailer: mailer, log: log}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("mail-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("mail-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.log.Warn("mail-consumer: set QoS failed", zap.Error(err))
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info("mail-consumer: consuming", zap.String("queue", c.queue))

	for d := range msgs {
		err := c.handleMessage(ctx, d.Body)
		switch {
		case err == nil:
			_ = d.Ack(false)
		case errors.Is(err, errMalformed) || d.Redelivered:
			// drop rather than loop on a poison message
			c.log.Error("mail-consumer: dropping message", zap.Error(err))
			_ = d.Nack(false, false)
		default:
			c.log.Warn("mail-consumer: delivery failed, requeueing once", zap.Error(err))
			_ = d.Nack(false, true)
		}
	}
	return errors.New("deliveries channel closed")
}

var errMalformed = errors.New("malformed mail event")

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev MailRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.To == "" {
		return fmt.Errorf("%w: missing recipient", errMalformed)
	}
	if err := c.mailer.Send(ctx, ev.message()); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	c.log.Info("mail delivered", zap.String("subject", ev.Subject))
	return nil
}
