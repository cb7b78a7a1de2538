package rabbitmq

import (
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection and topology configuration
type Config struct {
	Host              string
	Port              int
	User              string
	Password          string
	VHost             string
	WorkQueue         string
	DeadLetterQueue   string
	FanoutExchange    string
	RetryAttempts     int
	RetryInterval     time.Duration
	Heartbeat         time.Duration
	ConnectionTimeout time.Duration
}

// Connection owns the single AMQP connection for the process. It is created
// once at startup and injected into every publisher and consumer; each of
// those acquires its own channel and releases it on close.
type Connection struct {
	config *Config
	conn   *amqp.Connection
	logger *slog.Logger
}

// Dial connects to RabbitMQ with retry logic and declares the pipeline
// topology: the durable work queue, its dead-letter queue, and the fanout
// exchange for change notifications.
func Dial(config *Config, logger *slog.Logger) (*Connection, error) {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.VHost,
	)

	amqpConfig := dialConfig(config)

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= config.RetryAttempts; attempt++ {
		logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", config.RetryAttempts),
		)

		conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")
			break
		}

		logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < config.RetryAttempts {
			time.Sleep(config.RetryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", config.RetryAttempts, err)
	}

	c := &Connection{
		config: config,
		conn:   conn,
		logger: logger,
	}

	if err := c.declareTopology(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	logger.Info("RabbitMQ topology declared",
		slog.String("work_queue", config.WorkQueue),
		slog.String("dead_letter_queue", config.DeadLetterQueue),
		slog.String("fanout_exchange", config.FanoutExchange),
	)

	return c, nil
}

// dialConfig builds the AMQP dial settings. ConnectionTimeout bounds the TCP
// dial; zero keeps the library default.
func dialConfig(config *Config) amqp.Config {
	cfg := amqp.Config{
		Heartbeat: config.Heartbeat,
		Locale:    "en_US",
	}
	if config.ConnectionTimeout > 0 {
		cfg.Dial = amqp.DefaultDial(config.ConnectionTimeout)
	}
	return cfg
}

// declareTopology declares queues and exchanges on a short-lived channel.
func (c *Connection) declareTopology() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		c.config.WorkQueue, // name
		true,               // durable
		false,              // auto-delete
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare work queue: %w", err)
	}

	_, err = ch.QueueDeclare(
		c.config.DeadLetterQueue, // name
		true,                     // durable
		false,                    // auto-delete
		false,                    // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	err = ch.ExchangeDeclare(
		c.config.FanoutExchange, // name
		"fanout",                // type
		true,                    // durable
		false,                   // auto-delete
		false,                   // internal
		false,                   // no-wait
		nil,                     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare fanout exchange: %w", err)
	}

	return nil
}

// Close closes the AMQP connection. Channels owned by publishers and
// consumers must be closed first by their owners.
func (c *Connection) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

// IsConnected returns the connection status
func (c *Connection) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}
