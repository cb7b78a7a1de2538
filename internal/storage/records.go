package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phamdt203/csv-import-service/internal/domain"
)

// SaveImportResult commits the outcome of one ingestion message: all parsed
// records are inserted and the job moves PENDING -> COMPLETED in a single
// transaction. The job id acts as the idempotency key: the job row is locked
// and its status checked first, so a redelivered message whose job is already
// terminal inserts nothing and returns ErrJobAlreadyProcessed.
func (s *Storage) SaveImportResult(ctx context.Context, jobID string, records []domain.Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM jobs WHERE job_id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("failed to lock job: %w", err)
	}

	if !domain.CanTransition(status, domain.JobStatusCompleted) {
		s.logger.Warn("Job already in terminal state, skipping import result",
			slog.String("job_id", jobID),
			slog.String("status", status),
		)
		return domain.ErrJobAlreadyProcessed
	}

	insert := `
		INSERT INTO records (
			record_id, job_id, file_name, payload,
			imported_at, updated_at, deleted
		) VALUES (
			:record_id, :job_id, :file_name, :payload,
			:imported_at, :updated_at, :deleted
		)
	`

	if _, err := tx.NamedExecContext(ctx, insert, records); err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	update := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	result, err := tx.ExecContext(ctx, update, domain.JobStatusCompleted, jobID, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("job %s not in PENDING state at completion", jobID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import result: %w", err)
	}

	s.logger.Info("Import result committed",
		slog.String("job_id", jobID),
		slog.Int("record_count", len(records)),
	)

	return nil
}

// ChangedRecordIDsSince returns the ids of non-deleted records whose import
// or update timestamp falls at or after the window start.
func (s *Storage) ChangedRecordIDsSince(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT record_id
		FROM records
		WHERE deleted = FALSE
		  AND (imported_at >= $1 OR updated_at >= $1)
		ORDER BY imported_at ASC
	`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, since); err != nil {
		return nil, fmt.Errorf("failed to query changed records: %w", err)
	}

	return ids, nil
}

// RecordsByJobID returns the non-deleted records imported for one job.
func (s *Storage) RecordsByJobID(ctx context.Context, jobID string) ([]domain.Record, error) {
	query := `
		SELECT
			record_id, job_id, file_name, payload,
			imported_at, updated_at, deleted
		FROM records
		WHERE job_id = $1 AND deleted = FALSE
		ORDER BY imported_at ASC, record_id ASC
	`

	var records []domain.Record
	if err := s.db.SelectContext(ctx, &records, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}
