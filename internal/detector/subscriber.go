package detector

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/phamdt203/csv-import-service/internal/domain"
)

// Subscriber receives change notifications broadcast on the fan-out topic.
// Every instance gets its own copy; the handler only logs receipt and mutates
// nothing.
type Subscriber struct {
	logger     *slog.Logger
	instanceID string
}

// NewSubscriber creates a new Subscriber instance
func NewSubscriber(logger *slog.Logger, instanceID string) *Subscriber {
	return &Subscriber{
		logger:     logger,
		instanceID: instanceID,
	}
}

// Run consumes broadcast deliveries until the context is canceled or the
// delivery channel closes.
func (s *Subscriber) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	s.logger.Info("Change notification subscriber started",
		slog.String("instance_id", s.instanceID),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Change notification subscriber stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				s.logger.Warn("Change notification delivery channel closed")
				return nil
			}
			s.handle(delivery.Body)
		}
	}
}

// handle logs one received notification.
func (s *Subscriber) handle(body []byte) {
	var notification domain.ChangeNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		s.logger.Warn("Received malformed change notification",
			slog.Any("error", err),
		)
		return
	}

	s.logger.Info("Change notification received",
		slog.String("kind", notification.Kind),
		slog.Int("total_changes", notification.TotalChanges),
		slog.Time("window_start", notification.WindowStart),
		slog.Time("window_end", notification.WindowEnd),
		slog.String("source_instance", notification.InstanceID),
		slog.String("instance_id", s.instanceID),
	)
}
