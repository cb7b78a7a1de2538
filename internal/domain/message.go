package domain

import "time"

// IngestionMessage is the work-queue envelope. It carries no row data, only a
// pointer to the uploaded blob, so a redelivery can re-derive every processing
// input.
type IngestionMessage struct {
	JobID      string    `json:"job_id"`
	FileName   string    `json:"file_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Change notification kinds.
const (
	ChangeKindRecords = "records-changed"
)

// ChangeNotification is broadcast on the fan-out topic to every instance. It
// exists only on the wire; subscribers log it and persist nothing.
type ChangeNotification struct {
	Kind         string    `json:"kind"`
	RecordIDs    []string  `json:"record_ids"`
	TotalChanges int       `json:"total_changes"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	InstanceID   string    `json:"instance_id"`
}
