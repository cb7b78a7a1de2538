package ingest

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/phamdt203/csv-import-service/internal/domain"
)

// Header carrying the delivery attempt counter across republishes.
const attemptsHeader = "x-attempts"

// FailedJobMarker moves a job to FAILED when its message is dead-lettered.
type FailedJobMarker interface {
	MarkJobFailed(ctx context.Context, jobID string) error
}

// ConsumerConfig holds consumer dependencies and settings.
type ConsumerConfig struct {
	Logger          *slog.Logger
	Processor       *Processor
	Publisher       QueuePublisher
	Storage         FailedJobMarker
	WorkQueue       string
	DeadLetterQueue string
	MaxAttempts     int
}

// Consumer is the competing-consumer loop for one instance. With a prefetch
// of one it handles messages strictly sequentially and maps each processing
// outcome onto the broker: ack on success and drop, republish with a bumped
// attempt counter on retryable failure, dead-letter once the counter reaches
// the limit. Acknowledgment is the single commit point: it happens only after
// the record writes and job update have durably succeeded.
type Consumer struct {
	logger          *slog.Logger
	processor       *Processor
	publisher       QueuePublisher
	storage         FailedJobMarker
	workQueue       string
	deadLetterQueue string
	maxAttempts     int
}

// NewConsumer creates a new Consumer instance
func NewConsumer(cfg *ConsumerConfig) *Consumer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &Consumer{
		logger:          cfg.Logger,
		processor:       cfg.Processor,
		publisher:       cfg.Publisher,
		storage:         cfg.Storage,
		workQueue:       cfg.WorkQueue,
		deadLetterQueue: cfg.DeadLetterQueue,
		maxAttempts:     maxAttempts,
	}
}

// Run drains deliveries until the context is canceled or the delivery channel
// closes. A message in flight at shutdown is nacked with requeue so the
// broker redelivers it; it is never silently dropped.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	c.logger.Info("Consumer loop started",
		slog.String("queue", c.workQueue),
		slog.Int("max_attempts", c.maxAttempts),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer loop stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	outcome, msg, err := c.processor.Process(ctx, delivery.Body)

	// A retryable failure caused by shutdown is abandoned to the broker for
	// redelivery instead of burning an attempt.
	if outcome == domain.OutcomeRetry && ctx.Err() != nil {
		c.nackRequeue(delivery)
		return
	}

	switch outcome {
	case domain.OutcomeSuccess:
		c.ack(delivery)

	case domain.OutcomeDrop:
		c.logger.Warn("Dropping poison message",
			slog.Any("error", err),
		)
		c.ack(delivery)

	case domain.OutcomeRetry:
		c.scheduleRetry(ctx, delivery, msg, err)
	}
}

// scheduleRetry counts delivery attempts via the x-attempts header. Below the
// limit the body is republished with the counter bumped and the original
// acked; at the limit the message goes to the dead-letter queue and the job
// is marked FAILED. A failed republish falls back to nack-with-requeue so
// the message is never lost.
func (c *Consumer) scheduleRetry(ctx context.Context, delivery amqp.Delivery, msg *domain.IngestionMessage, cause error) {
	attempts := attemptsFromHeaders(delivery.Headers)

	if attempts >= c.maxAttempts {
		c.logger.Error("Message exceeded max attempts, dead-lettering",
			slog.Int("attempts", attempts),
			slog.Int("max_attempts", c.maxAttempts),
			slog.Any("error", cause),
		)

		headers := amqp.Table{
			attemptsHeader: int32(attempts),
			"x-last-error": cause.Error(),
		}
		if err := c.publisher.PublishQueue(ctx, c.deadLetterQueue, delivery.Body, headers); err != nil {
			c.logger.Error("Failed to dead-letter message",
				slog.Any("error", err),
			)
			c.nackRequeue(delivery)
			return
		}

		if msg != nil {
			if err := c.storage.MarkJobFailed(ctx, msg.JobID); err != nil {
				c.logger.Error("Failed to mark job FAILED after dead-lettering",
					slog.String("job_id", msg.JobID),
					slog.Any("error", err),
				)
			}
		}

		c.ack(delivery)
		return
	}

	headers := amqp.Table{attemptsHeader: int32(attempts + 1)}
	if err := c.publisher.PublishQueue(ctx, c.workQueue, delivery.Body, headers); err != nil {
		c.logger.Error("Failed to republish message for retry",
			slog.Any("error", err),
		)
		c.nackRequeue(delivery)
		return
	}

	c.logger.Warn("Message scheduled for retry",
		slog.Int("attempt", attempts+1),
		slog.Int("max_attempts", c.maxAttempts),
		slog.Any("error", cause),
	)
	c.ack(delivery)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Any("error", err),
		)
	}
}

func (c *Consumer) nackRequeue(delivery amqp.Delivery) {
	if err := delivery.Nack(false, true); err != nil {
		c.logger.Error("Failed to NACK message",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Any("error", err),
		)
	}
}

// attemptsFromHeaders reads the attempt counter, defaulting to 1 for a first
// delivery. AMQP tables surface numbers as several concrete types depending
// on the publisher, so all of them are accepted.
func attemptsFromHeaders(headers amqp.Table) int {
	if headers == nil {
		return 1
	}

	var attempts int
	switch v := headers[attemptsHeader].(type) {
	case int32:
		attempts = int(v)
	case int64:
		attempts = int(v)
	case int:
		attempts = v
	case float64:
		attempts = int(v)
	default:
		return 1
	}

	if attempts < 1 {
		return 1
	}
	return attempts
}
