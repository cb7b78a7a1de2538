package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdt203/csv-import-service/internal/domain"
)

type fakeDownloader struct {
	content string
	err     error
}

func (f *fakeDownloader) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

type fakeImportStore struct {
	err     error
	jobID   string
	records []domain.Record
}

func (f *fakeImportStore) SaveImportResult(_ context.Context, jobID string, records []domain.Record) error {
	if f.err != nil {
		return f.err
	}
	f.jobID = jobID
	f.records = records
	return nil
}

func messageBody(t *testing.T, jobID, fileName string) []byte {
	t.Helper()
	body, err := json.Marshal(domain.IngestionMessage{
		JobID:      jobID,
		FileName:   fileName,
		EnqueuedAt: time.Now(),
	})
	require.NoError(t, err)
	return body
}

func TestProcessorProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed body is dropped", func(t *testing.T) {
		p := NewProcessor(testLogger(), &fakeDownloader{}, &fakeImportStore{})

		outcome, msg, err := p.Process(ctx, []byte("not json"))

		assert.Equal(t, domain.OutcomeDrop, outcome)
		assert.Nil(t, msg)
		assert.ErrorIs(t, err, domain.ErrMalformedMessage)
	})

	t.Run("blank file name is dropped", func(t *testing.T) {
		p := NewProcessor(testLogger(), &fakeDownloader{}, &fakeImportStore{})

		outcome, msg, err := p.Process(ctx, messageBody(t, "job-1", "  "))

		assert.Equal(t, domain.OutcomeDrop, outcome)
		require.NotNil(t, msg)
		assert.ErrorIs(t, err, domain.ErrEmptyFileName)
	})

	t.Run("download failure is retryable", func(t *testing.T) {
		blobs := &fakeDownloader{err: errors.New("object not found")}
		p := NewProcessor(testLogger(), blobs, &fakeImportStore{})

		outcome, _, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		assert.Equal(t, domain.OutcomeRetry, outcome)
		assert.Error(t, err)
	})

	t.Run("zero parsed rows is retryable", func(t *testing.T) {
		blobs := &fakeDownloader{content: "a,b\n"}
		p := NewProcessor(testLogger(), blobs, &fakeImportStore{})

		outcome, _, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		assert.Equal(t, domain.OutcomeRetry, outcome)
		assert.ErrorIs(t, err, domain.ErrNoRows)
	})

	t.Run("persistence failure is retryable", func(t *testing.T) {
		blobs := &fakeDownloader{content: "a,b\n1,2\n"}
		store := &fakeImportStore{err: errors.New("connection reset")}
		p := NewProcessor(testLogger(), blobs, store)

		outcome, _, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		assert.Equal(t, domain.OutcomeRetry, outcome)
		assert.Error(t, err)
	})

	t.Run("already-terminal job counts as success", func(t *testing.T) {
		blobs := &fakeDownloader{content: "a,b\n1,2\n"}
		store := &fakeImportStore{err: domain.ErrJobAlreadyProcessed}
		p := NewProcessor(testLogger(), blobs, store)

		outcome, _, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		assert.Equal(t, domain.OutcomeSuccess, outcome)
		assert.NoError(t, err)
	})

	t.Run("unknown job is dropped", func(t *testing.T) {
		blobs := &fakeDownloader{content: "a,b\n1,2\n"}
		store := &fakeImportStore{err: domain.ErrJobNotFound}
		p := NewProcessor(testLogger(), blobs, store)

		outcome, _, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		assert.Equal(t, domain.OutcomeDrop, outcome)
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})

	t.Run("successful processing saves every row", func(t *testing.T) {
		blobs := &fakeDownloader{content: "name,age\nalice,30\nbob,25\n"}
		store := &fakeImportStore{}
		p := NewProcessor(testLogger(), blobs, store)

		outcome, msg, err := p.Process(ctx, messageBody(t, "job-1", "file.csv"))

		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, outcome)
		require.NotNil(t, msg)
		assert.Equal(t, "job-1", store.jobID)
		require.Len(t, store.records, 2)

		name, ok := store.records[0].Payload.Get("name")
		require.True(t, ok)
		assert.Equal(t, "alice", name)
	})
}
