package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/phamdt203/csv-import-service/internal/domain"
)

// BlobUploader is the slice of the object store the importer needs.
type BlobUploader interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// JobCreator is the slice of the job ledger the importer needs.
type JobCreator interface {
	CreateJob(ctx context.Context, job *domain.Job) error
}

// QueuePublisher publishes a message body to a named queue.
type QueuePublisher interface {
	PublishQueue(ctx context.Context, queue string, body []byte, headers amqp.Table) error
}

// ImporterConfig holds importer dependencies and settings.
type ImporterConfig struct {
	Logger    *slog.Logger
	Blobs     BlobUploader
	Storage   JobCreator
	Publisher QueuePublisher
	WorkQueue string
}

// Importer accepts raw CSV uploads and hands them to the asynchronous
// pipeline: blob upload, job row at PENDING, ingestion message on the work
// queue. It returns as soon as the message is published; processing status
// must be polled on the job.
type Importer struct {
	logger    *slog.Logger
	blobs     BlobUploader
	storage   JobCreator
	publisher QueuePublisher
	workQueue string
	now       func() time.Time
}

// NewImporter creates a new Importer instance
func NewImporter(cfg *ImporterConfig) *Importer {
	return &Importer{
		logger:    cfg.Logger,
		blobs:     cfg.Blobs,
		storage:   cfg.Storage,
		publisher: cfg.Publisher,
		workQueue: cfg.WorkQueue,
		now:       time.Now,
	}
}

// Submit validates the upload and runs the three submission steps in order:
// object store write, job insert, queue publish. A failed upload aborts
// before any job exists. A failed publish after the insert leaves the job
// stranded at PENDING; that condition is logged with the job id so it can be
// found and re-driven by hand.
func (i *Importer) Submit(ctx context.Context, data []byte, originalName string) (string, error) {
	if len(data) == 0 {
		return "", domain.ErrEmptyPayload
	}
	if strings.TrimSpace(originalName) == "" {
		return "", domain.ErrEmptyFileName
	}

	now := i.now()
	storedName := storedFileName(originalName, now)

	if err := i.blobs.Put(ctx, storedName, data, "text/csv"); err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	job := &domain.Job{
		JobID:        uuid.New().String(),
		FileName:     storedName,
		OriginalName: originalName,
		Kind:         domain.JobKindImport,
		Status:       domain.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := i.storage.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	msg := domain.IngestionMessage{
		JobID:      job.JobID,
		FileName:   storedName,
		EnqueuedAt: now,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ingestion message: %w", err)
	}

	if err := i.publisher.PublishQueue(ctx, i.workQueue, body, nil); err != nil {
		i.logger.Error("Publish failed after job insert - job stranded at PENDING",
			slog.String("job_id", job.JobID),
			slog.String("file_name", storedName),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to publish ingestion message: %w", err)
	}

	i.logger.Info("Import submitted",
		slog.String("job_id", job.JobID),
		slog.String("file_name", storedName),
		slog.String("original_name", originalName),
		slog.Int("size", len(data)),
	)

	return job.JobID, nil
}
