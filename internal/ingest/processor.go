package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/phamdt203/csv-import-service/internal/domain"
)

// BlobDownloader is the slice of the object store the processor needs.
type BlobDownloader interface {
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}

// ImportStore persists the result of one processed message.
type ImportStore interface {
	SaveImportResult(ctx context.Context, jobID string, records []domain.Record) error
}

// Processor turns one delivered message body into an explicit outcome. It
// performs every step except acknowledgment; mapping the outcome onto the
// broker is the consumer loop's job.
type Processor struct {
	logger  *slog.Logger
	blobs   BlobDownloader
	storage ImportStore
	now     func() time.Time
}

// NewProcessor creates a new Processor instance
func NewProcessor(logger *slog.Logger, blobs BlobDownloader, storage ImportStore) *Processor {
	return &Processor{
		logger:  logger,
		blobs:   blobs,
		storage: storage,
		now:     time.Now,
	}
}

// Process handles a single ingestion message body. The returned message is
// nil when the envelope could not be decoded. Outcomes:
//   - OutcomeDrop: malformed envelope or blank file name; retrying can never
//     succeed, so the message must be acked and dropped.
//   - OutcomeRetry: download, parse (zero rows) or persistence failed; the
//     blob and database may recover, so the message should be redelivered.
//   - OutcomeSuccess: records inserted and job completed in one transaction,
//     or the job was already terminal (redelivery after a completed run).
func (p *Processor) Process(ctx context.Context, body []byte) (domain.Outcome, *domain.IngestionMessage, error) {
	var msg domain.IngestionMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		p.logger.Error("Failed to decode ingestion message",
			slog.String("body", string(body)),
			slog.Any("error", err),
		)
		return domain.OutcomeDrop, nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	if strings.TrimSpace(msg.FileName) == "" {
		p.logger.Error("Ingestion message has empty file name",
			slog.String("job_id", msg.JobID),
		)
		return domain.OutcomeDrop, &msg, domain.ErrEmptyFileName
	}

	stream, err := p.blobs.Get(ctx, msg.FileName)
	if err != nil {
		p.logger.Error("Failed to download file",
			slog.String("job_id", msg.JobID),
			slog.String("file_name", msg.FileName),
			slog.Any("error", err),
		)
		return domain.OutcomeRetry, &msg, fmt.Errorf("failed to download %s: %w", msg.FileName, err)
	}
	defer stream.Close()

	records, err := ParseRows(stream, msg.JobID, msg.FileName, p.now())
	if err != nil {
		return domain.OutcomeRetry, &msg, fmt.Errorf("failed to parse %s: %w", msg.FileName, err)
	}

	if len(records) == 0 {
		// An empty parse is not a silent success: the blob may be truncated
		// or half-written, so let the retry path decide.
		p.logger.Warn("File parsed to zero rows",
			slog.String("job_id", msg.JobID),
			slog.String("file_name", msg.FileName),
		)
		return domain.OutcomeRetry, &msg, domain.ErrNoRows
	}

	if err := p.storage.SaveImportResult(ctx, msg.JobID, records); err != nil {
		switch {
		case errors.Is(err, domain.ErrJobAlreadyProcessed):
			p.logger.Warn("Redelivered message for terminal job, dropping",
				slog.String("job_id", msg.JobID),
			)
			return domain.OutcomeSuccess, &msg, nil
		case errors.Is(err, domain.ErrJobNotFound):
			p.logger.Error("Message references unknown job, dropping",
				slog.String("job_id", msg.JobID),
			)
			return domain.OutcomeDrop, &msg, err
		default:
			return domain.OutcomeRetry, &msg, fmt.Errorf("failed to persist import result: %w", err)
		}
	}

	p.logger.Info("Ingestion message processed",
		slog.String("job_id", msg.JobID),
		slog.String("file_name", msg.FileName),
		slog.Int("record_count", len(records)),
	)

	return domain.OutcomeSuccess, &msg, nil
}
