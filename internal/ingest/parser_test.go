package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		wantRows []map[string]string
	}{
		{
			name:  "header and matching rows",
			input: "name,age\nalice,30\nbob,25\n",
			wantRows: []map[string]string{
				{"name": "alice", "age": "30"},
				{"name": "bob", "age": "25"},
			},
		},
		{
			name:  "more values than headers truncates values",
			input: "a,b\n1,2,3\n",
			wantRows: []map[string]string{
				{"a": "1", "b": "2"},
			},
		},
		{
			name:  "more headers than values truncates headers",
			input: "a,b,c\n1,2\n",
			wantRows: []map[string]string{
				{"a": "1", "b": "2"},
			},
		},
		{
			name:  "blank lines between rows are skipped",
			input: "a,b\n1,2\n\n   \n3,4\n",
			wantRows: []map[string]string{
				{"a": "1", "b": "2"},
				{"a": "3", "b": "4"},
			},
		},
		{
			name:  "fields are trimmed",
			input: " a , b \n 1 , 2 \n",
			wantRows: []map[string]string{
				{"a": "1", "b": "2"},
			},
		},
		{
			name:     "empty input",
			input:    "",
			wantRows: nil,
		},
		{
			name:     "blank header",
			input:    "   \n1,2\n",
			wantRows: nil,
		},
		{
			name:     "header only",
			input:    "a,b\n",
			wantRows: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseRows(strings.NewReader(tt.input), "job-1", "file.csv", now)
			require.NoError(t, err)
			require.Len(t, records, len(tt.wantRows))

			for i, want := range tt.wantRows {
				rec := records[i]
				assert.Equal(t, "job-1", rec.JobID)
				assert.Equal(t, "file.csv", rec.FileName)
				assert.Equal(t, now, rec.ImportedAt)
				assert.NotEmpty(t, rec.RecordID)

				assert.Equal(t, len(want), rec.Payload.Len())
				for k, v := range want {
					got, ok := rec.Payload.Get(k)
					require.True(t, ok, "missing column %q", k)
					assert.Equal(t, v, got)
				}
			}
		})
	}
}

func TestParseRowsColumnOrder(t *testing.T) {
	records, err := ParseRows(strings.NewReader("z,a,m\n1,2,3\n"), "job-1", "file.csv", time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []string{"z", "a", "m"}, records[0].Payload.Columns())
}

func TestParseRowsDistinctRecordIDs(t *testing.T) {
	records, err := ParseRows(strings.NewReader("a\n1\n2\n3\n"), "job-1", "file.csv", time.Now())
	require.NoError(t, err)
	require.Len(t, records, 3)

	seen := make(map[string]bool)
	for _, rec := range records {
		assert.False(t, seen[rec.RecordID])
		seen[rec.RecordID] = true
	}
}
