package dto

import "github.com/phamdt203/csv-import-service/internal/domain"

type ImportResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type JobDTO struct {
	JobID        string `json:"job_id"`
	FileName     string `json:"file_name"`
	OriginalName string `json:"original_name,omitempty"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	Kind     string `form:"kind"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type FileURLResponse struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

type RecordDTO struct {
	RecordID   string            `json:"record_id"`
	Payload    domain.RowPayload `json:"payload"`
	ImportedAt string            `json:"imported_at"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type ListRecordsResponse struct {
	JobID   string      `json:"job_id"`
	Records []RecordDTO `json:"records"`
	Total   int         `json:"total"`
}
