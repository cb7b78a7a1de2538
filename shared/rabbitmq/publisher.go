package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends messages over its own channel. One publisher can address
// both the work/dead-letter queues (via the default exchange) and the fanout
// exchange.
type Publisher struct {
	channel *amqp.Channel
	logger  *slog.Logger
}

// NewPublisher opens a dedicated channel for publishing.
func (c *Connection) NewPublisher() (*Publisher, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}

	return &Publisher{
		channel: ch,
		logger:  c.logger,
	}, nil
}

// PublishQueue publishes a persistent message directly to a queue through the
// default exchange. Extra headers (such as the delivery attempt counter) are
// passed through unchanged.
func (p *Publisher) PublishQueue(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	err := p.channel.PublishWithContext(
		ctx,
		"",    // exchange (default)
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)

	if err != nil {
		p.logger.Error("Failed to publish message to queue",
			slog.String("queue", queue),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish to queue %s: %w", queue, err)
	}

	p.logger.Debug("Message published to queue",
		slog.String("queue", queue),
		slog.Int("body_size", len(body)),
	)

	return nil
}

// PublishFanout broadcasts a message on a fanout exchange; every bound
// subscriber queue receives an independent copy.
func (p *Publisher) PublishFanout(ctx context.Context, exchange string, body []byte) error {
	err := p.channel.PublishWithContext(
		ctx,
		exchange,
		"",    // routing key ignored by fanout
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
		},
	)

	if err != nil {
		p.logger.Error("Failed to publish message to fanout exchange",
			slog.String("exchange", exchange),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish to exchange %s: %w", exchange, err)
	}

	p.logger.Debug("Message published to fanout exchange",
		slog.String("exchange", exchange),
		slog.Int("body_size", len(body)),
	)

	return nil
}

// Close releases the publisher channel.
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
