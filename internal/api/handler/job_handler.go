package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/phamdt203/csv-import-service/internal/api/dto"
	"github.com/phamdt203/csv-import-service/internal/domain"
	"github.com/phamdt203/csv-import-service/internal/storage"
)

// CreateImport handles POST /api/v1/imports
// Accepts a multipart CSV upload and submits it to the asynchronous pipeline.
// The response carries the job id; processing happens in the background and
// status must be polled via GET /api/v1/jobs/:job_id.
func (h *JobHandler) CreateImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Error("Missing file in import request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "multipart field 'file' is required",
		})
		return
	}

	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds maximum upload size",
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read uploaded file",
		})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		h.logger.Error("Failed to read uploaded file", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read uploaded file",
		})
		return
	}

	jobID, err := h.importer.Submit(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPayload) || errors.Is(err, domain.ErrEmptyFileName) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}

		h.logger.Error("Failed to submit import", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit import",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.ImportResponse{
		JobID:  jobID,
		Status: domain.JobStatusPending,
	})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and keyset pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		Status:   req.Status,
		Kind:     req.Kind,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// GetFileURL handles GET /api/v1/jobs/:job_id/file-url
// Returns a presigned download URL for the job's stored file.
func (h *JobHandler) GetFileURL(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	url, err := h.signer.SignedURL(c.Request.Context(), job.FileName, h.urlTTL)
	if err != nil {
		h.logger.Error("Failed to presign file URL",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate file URL",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FileURLResponse{
		JobID: jobID,
		URL:   url,
	})
}

// GetJobRecords handles GET /api/v1/jobs/:job_id/records
// Returns the rows imported for one job in import order.
func (h *JobHandler) GetJobRecords(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if _, err := h.storage.GetJobByID(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	records, err := h.storage.RecordsByJobID(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to list records",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list records",
		})
		return
	}

	recordResponse := make([]dto.RecordDTO, len(records))
	for i := range records {
		recordResponse[i] = toRecordDTO(&records[i])
	}

	c.JSON(http.StatusOK, dto.ListRecordsResponse{
		JobID:   jobID,
		Records: recordResponse,
		Total:   len(records),
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Jobs are kept for audit history, so deletion only flags the row.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if err := h.storage.SoftDeleteJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to delete job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete job",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.JobID,
		FileName:     job.FileName,
		OriginalName: job.OriginalName,
		Kind:         job.Kind,
		Status:       job.Status,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}

func toRecordDTO(record *domain.Record) dto.RecordDTO {
	out := dto.RecordDTO{
		RecordID:   record.RecordID,
		Payload:    record.Payload,
		ImportedAt: record.ImportedAt.Format(time.RFC3339),
	}
	if record.UpdatedAt != nil {
		out.UpdatedAt = record.UpdatedAt.Format(time.RFC3339)
	}
	return out
}
