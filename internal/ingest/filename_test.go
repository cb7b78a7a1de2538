package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStoredFileName(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("keeps extension and sanitized base", func(t *testing.T) {
		name := storedFileName("My Data (final).csv", now)

		assert.True(t, strings.HasSuffix(name, ".csv"))
		assert.True(t, strings.HasPrefix(name, "My-Data--final"))
		assert.NotContains(t, name, " ")
		assert.NotContains(t, name, "(")
	})

	t.Run("strips path components", func(t *testing.T) {
		name := storedFileName("../../etc/passwd.csv", now)

		assert.NotContains(t, name, "/")
		assert.True(t, strings.HasPrefix(name, "passwd"))
	})

	t.Run("distinct names for the same input", func(t *testing.T) {
		a := storedFileName("data.csv", now)
		b := storedFileName("data.csv", now)

		assert.NotEqual(t, a, b)
	})
}

func TestSanitizeBaseName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "report_2025", "report_2025"},
		{"spaces become dashes", "my file", "my-file"},
		{"special characters become dashes", "a/b\\c:d", "a-b-c-d"},
		{"leading and trailing junk trimmed", "--data--", "data"},
		{"all junk falls back", "###", "upload"},
		{"empty falls back", "", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeBaseName(tt.input))
		})
	}
}
