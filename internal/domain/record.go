package domain

import "time"

// Record is one parsed CSV row persisted against a Job. A record is immutable
// once written except for UpdatedAt and the soft-delete flag.
type Record struct {
	RecordID   string     `db:"record_id"`
	JobID      string     `db:"job_id"`
	FileName   string     `db:"file_name"`
	Payload    RowPayload `db:"payload"`
	ImportedAt time.Time  `db:"imported_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	Deleted    bool       `db:"deleted"`
}
