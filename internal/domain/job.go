package domain

import "time"

// Job status constants
const (
	JobStatusPending   = "PENDING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Job kind constants
const (
	JobKindImport = "IMPORT"
	JobKindExport = "EXPORT"
)

// Job is a tracked unit of import work. The stored FileName is written once at
// creation and never changes; OriginalName is kept only for display.
type Job struct {
	JobID        string    `db:"job_id"`
	FileName     string    `db:"file_name"`
	OriginalName string    `db:"original_name"`
	Kind         string    `db:"kind"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Deleted      bool      `db:"deleted"`
}

// CanTransition reports whether a job status change is allowed. Transitions
// are monotonic: PENDING may move to COMPLETED or FAILED, terminal states
// never move again.
func CanTransition(from, to string) bool {
	if from != JobStatusPending {
		return false
	}
	return to == JobStatusCompleted || to == JobStatusFailed
}
