package domain

// Outcome classifies the result of processing one ingestion message. The
// consumer loop maps it deterministically to the broker acknowledgment:
// success and drop are acked, retry goes back on the queue until the attempt
// limit moves it to the dead-letter queue.
type Outcome int

const (
	// OutcomeSuccess means the message was fully processed and durably persisted.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry means a transient failure; the message should be redelivered.
	OutcomeRetry
	// OutcomeDrop means a permanent failure; retrying can never succeed.
	OutcomeDrop
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeDrop:
		return "drop"
	default:
		return "unknown"
	}
}
