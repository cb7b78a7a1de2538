package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/phamdt203/csv-import-service/internal/api/handler"
	"github.com/phamdt203/csv-import-service/internal/api/router"
	"github.com/phamdt203/csv-import-service/internal/config"
	"github.com/phamdt203/csv-import-service/internal/detector"
	"github.com/phamdt203/csv-import-service/internal/ingest"
	"github.com/phamdt203/csv-import-service/internal/storage"
	"github.com/phamdt203/csv-import-service/shared/logger"
	"github.com/phamdt203/csv-import-service/shared/objectstore"
	"github.com/phamdt203/csv-import-service/shared/postgresql"
	"github.com/phamdt203/csv-import-service/shared/rabbitmq"
	sharedredis "github.com/phamdt203/csv-import-service/shared/redis"
)

// Key under which the fleet-wide change detector watermark lives.
const watermarkKey = "csv:changes:last-check"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("IMPORT_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/import-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	instanceID := newInstanceID()

	appLogger.Info("Starting import service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("instance_id", instanceID),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	// Initialize the single owned RabbitMQ connection; publishers and
	// consumers below each open their own channel on it.
	rabbitConn, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitConn.Close()

	// Initialize object store client
	blobs, err := objectstore.NewClient(&objectstore.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	// Optional shared watermark store for the change detector
	var watermark detector.Watermark
	if cfg.Redis.Enabled {
		rdb, err := sharedredis.NewClient(&sharedredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer rdb.Close()
		watermark = sharedredis.NewWatermarkStore(rdb, watermarkKey)
	}

	store := storage.NewStorage(dbClient, appLogger.Logger)

	publisher, err := rabbitConn.NewPublisher()
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	defer publisher.Close()

	importer := ingest.NewImporter(&ingest.ImporterConfig{
		Logger:    appLogger.Logger,
		Blobs:     blobs,
		Storage:   store,
		Publisher: publisher,
		WorkQueue: cfg.RabbitMQ.WorkQueue,
	})

	processor := ingest.NewProcessor(appLogger.Logger, blobs, store)

	consumer := ingest.NewConsumer(&ingest.ConsumerConfig{
		Logger:          appLogger.Logger,
		Processor:       processor,
		Publisher:       publisher,
		Storage:         store,
		WorkQueue:       cfg.RabbitMQ.WorkQueue,
		DeadLetterQueue: cfg.RabbitMQ.DeadLetterQueue,
		MaxAttempts:     cfg.Consumer.MaxAttempts,
	})

	queueConsumer, err := rabbitConn.NewQueueConsumer(
		cfg.RabbitMQ.WorkQueue,
		instanceID,
		cfg.Consumer.PrefetchCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue consumer: %w", err)
	}
	defer queueConsumer.Close()

	changeDetector := detector.NewDetector(
		appLogger.Logger,
		store,
		publisher,
		watermark,
		&detector.Config{
			Interval:      cfg.Detector.Interval,
			WarmUp:        cfg.Detector.WarmUp,
			FanoutEnabled: cfg.Detector.FanoutEnabled,
			Exchange:      cfg.RabbitMQ.FanoutExchange,
			InstanceID:    instanceID,
		},
	)

	fanoutSubscriber, err := rabbitConn.NewFanoutSubscriber(
		cfg.RabbitMQ.FanoutExchange,
		instanceID+"-changes",
	)
	if err != nil {
		return fmt.Errorf("failed to create fanout subscriber: %w", err)
	}
	defer fanoutSubscriber.Close()

	changeSubscriber := detector.NewSubscriber(appLogger.Logger, instanceID)

	// HTTP layer
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:         appLogger.Logger,
		Importer:       importer,
		Storage:        store,
		Signer:         blobs,
		URLTTL:         cfg.Storage.URLTTL,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return consumer.Run(gctx, queueConsumer.Deliveries())
	})

	g.Go(func() error {
		return changeDetector.Run(gctx)
	})

	g.Go(func() error {
		return changeSubscriber.Run(gctx, fanoutSubscriber.Deliveries())
	})

	appLogger.Info("Import service is running",
		slog.String("address", addr),
	)

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Import service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ dials the owned broker connection and declares topology
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Connection, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		User:              cfg.User,
		Password:          cfg.Password,
		VHost:             cfg.VHost,
		WorkQueue:         cfg.WorkQueue,
		DeadLetterQueue:   cfg.DeadLetterQueue,
		FanoutExchange:    cfg.FanoutExchange,
		RetryAttempts:     cfg.Connection.RetryAttempts,
		RetryInterval:     cfg.Connection.RetryInterval,
		Heartbeat:         cfg.Connection.Heartbeat,
		ConnectionTimeout: cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.Dial(rabbitConfig, logger)
}

// newInstanceID identifies this service instance in consumer tags and
// change notifications.
func newInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "import-service"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return host + "-" + suffix
}
