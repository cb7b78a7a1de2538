package rabbitmq

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueConsumer drains a queue over its own channel with manual
// acknowledgment and a per-channel prefetch limit.
type QueueConsumer struct {
	channel    *amqp.Channel
	deliveries <-chan amqp.Delivery
	logger     *slog.Logger
}

// NewQueueConsumer opens a dedicated channel, applies the prefetch limit, and
// starts consuming from the given queue.
func (c *Connection) NewQueueConsumer(queue, consumerTag string, prefetch int) (*QueueConsumer, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	// prefetch limits unacknowledged deliveries per consumer; size 0 means no
	// byte limit, global false scopes the limit to this consumer.
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,       // queue
		consumerTag, // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from queue %s: %w", queue, err)
	}

	c.logger.Info("Queue consumer started",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch", prefetch),
	)

	return &QueueConsumer{
		channel:    ch,
		deliveries: deliveries,
		logger:     c.logger,
	}, nil
}

// Deliveries returns the channel of incoming deliveries. It is closed when
// the consumer channel closes.
func (qc *QueueConsumer) Deliveries() <-chan amqp.Delivery {
	return qc.deliveries
}

// Close cancels the consumer and releases its channel. Unacknowledged
// deliveries return to the queue for redelivery.
func (qc *QueueConsumer) Close() error {
	if qc.channel != nil {
		return qc.channel.Close()
	}
	return nil
}

// FanoutSubscriber receives broadcast messages on an exclusive auto-delete
// queue bound to a fanout exchange. Deliveries are auto-acked: notifications
// are ephemeral and subscribers only log them.
type FanoutSubscriber struct {
	channel    *amqp.Channel
	queueName  string
	deliveries <-chan amqp.Delivery
	logger     *slog.Logger
}

// NewFanoutSubscriber binds a fresh server-named queue to the exchange so this
// instance receives its own copy of every broadcast.
func (c *Connection) NewFanoutSubscriber(exchange, consumerTag string) (*FanoutSubscriber, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open subscriber channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-generated name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind subscriber queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name,      // queue
		consumerTag, // consumer tag
		true,        // auto-ack
		true,        // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume from subscriber queue: %w", err)
	}

	c.logger.Info("Fanout subscriber bound",
		slog.String("exchange", exchange),
		slog.String("queue", q.Name),
		slog.String("consumer_tag", consumerTag),
	)

	return &FanoutSubscriber{
		channel:    ch,
		queueName:  q.Name,
		deliveries: deliveries,
		logger:     c.logger,
	}, nil
}

// Deliveries returns the channel of broadcast deliveries.
func (fs *FanoutSubscriber) Deliveries() <-chan amqp.Delivery {
	return fs.deliveries
}

// Close releases the subscriber channel; the exclusive queue is auto-deleted.
func (fs *FanoutSubscriber) Close() error {
	if fs.channel != nil {
		return fs.channel.Close()
	}
	return nil
}
