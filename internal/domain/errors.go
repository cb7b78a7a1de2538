package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyProcessed is returned when a job referenced by a redelivered
	// message is already in a terminal state
	ErrJobAlreadyProcessed = errors.New("job already processed")

	// ErrEmptyPayload is returned when a submitted file has no bytes
	ErrEmptyPayload = errors.New("file payload is empty")

	// ErrEmptyFileName is returned when a submitted file name is blank
	ErrEmptyFileName = errors.New("file name is empty")

	// ErrMalformedMessage is returned when a queue envelope cannot be decoded
	ErrMalformedMessage = errors.New("malformed ingestion message")

	// ErrNoRows is returned when a downloaded file parses to zero rows
	ErrNoRows = errors.New("file produced no rows")
)
