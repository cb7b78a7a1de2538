package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/phamdt203/csv-import-service/internal/domain"
	"github.com/phamdt203/csv-import-service/internal/ingest"
	"github.com/phamdt203/csv-import-service/internal/storage"
)

// URLSigner issues presigned download URLs for stored blobs.
type URLSigner interface {
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// JobStore is the slice of the storage layer the handlers read and mutate.
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	SoftDeleteJob(ctx context.Context, jobID string) error
	RecordsByJobID(ctx context.Context, jobID string) ([]domain.Record, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger         *slog.Logger
	Importer       *ingest.Importer
	Storage        JobStore
	Signer         URLSigner
	URLTTL         time.Duration
	MaxUploadBytes int64
}

// JobHandler handles import and job HTTP requests
type JobHandler struct {
	logger         *slog.Logger
	importer       *ingest.Importer
	storage        JobStore
	signer         URLSigner
	urlTTL         time.Duration
	maxUploadBytes int64
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	urlTTL := deps.URLTTL
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}

	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	return &JobHandler{
		logger:         deps.Logger,
		importer:       deps.Importer,
		storage:        deps.Storage,
		signer:         deps.Signer,
		urlTTL:         urlTTL,
		maxUploadBytes: maxUpload,
	}
}
