package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phamdt203/csv-import-service/internal/domain"
)

// ParseRows converts a raw CSV stream into records for one job. The stream is
// consumed exactly once.
//
// The tokenizer is deliberately naive: the first line is the header, fields
// split on a bare comma with surrounding whitespace trimmed. Quoted fields,
// embedded delimiters and escaped quotes are not supported. A blank header
// yields an empty result. For each non-blank data line, header and value
// tokens are zipped positionally and the shorter side truncates: excess
// headers produce no key, excess values are dropped.
func ParseRows(r io.Reader, jobID, fileName string, now time.Time) ([]domain.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, nil
	}

	headers := splitLine(scanner.Text())
	if headers == nil {
		// Blank header: nothing to zip values against.
		return nil, nil
	}

	var records []domain.Record
	for scanner.Scan() {
		values := splitLine(scanner.Text())
		if values == nil {
			continue
		}

		n := len(headers)
		if len(values) < n {
			n = len(values)
		}

		payload := domain.NewRowPayload(n)
		for i := 0; i < n; i++ {
			payload.Set(headers[i], values[i])
		}

		records = append(records, domain.Record{
			RecordID:   uuid.New().String(),
			JobID:      jobID,
			FileName:   fileName,
			Payload:    payload,
			ImportedAt: now,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return records, nil
}

// splitLine tokenizes one line, trimming each field. Blank lines return nil.
func splitLine(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	fields := strings.Split(line, ",")
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}
