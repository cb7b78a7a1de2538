package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phamdt203/csv-import-service/internal/domain"
	"github.com/phamdt203/csv-import-service/shared/postgresql"
)

// Storage handles all database operations for jobs and records.
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// CreateJob inserts a new job row. The stored file name is written here and
// never updated afterwards.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, file_name, original_name, kind,
			status, created_at, updated_at, deleted
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.FileName,
		job.OriginalName,
		job.Kind,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
		job.Deleted,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJobByID retrieves a job by its ID.
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	query := `
		SELECT
			job_id, file_name, original_name, kind,
			status, created_at, updated_at, deleted
		FROM jobs
		WHERE job_id = $1 AND deleted = FALSE
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MarkJobFailed moves a pending job to FAILED. The status guard keeps a
// terminal job from regressing when a stale message reaches this step.
func (s *Storage) MarkJobFailed(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, jobID, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Job not moved to FAILED - missing or already terminal",
			slog.String("job_id", jobID),
		)
	}

	return nil
}

// SoftDeleteJob flags a job as deleted without removing the row; jobs are
// kept forever for audit history.
func (s *Storage) SoftDeleteJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET deleted = TRUE, updated_at = NOW()
		WHERE job_id = $1 AND deleted = FALSE
	`

	result, err := s.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to soft delete job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

// JobFilter narrows a job listing.
type JobFilter struct {
	Status   string
	Kind     string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is a (created_at, job_id) keyset position for stable pagination.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs so the caller can detect a next page.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT
			job_id, file_name, original_name, kind,
			status, created_at, updated_at, deleted
		FROM jobs
		WHERE deleted = FALSE
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
