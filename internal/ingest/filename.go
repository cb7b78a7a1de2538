package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// storedFileName derives a collision-resistant object name from the
// user-supplied one: sanitized base name, upload timestamp, and a short
// random suffix, with the original extension preserved.
func storedFileName(originalName string, now time.Time) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(filepath.Base(originalName), ext)

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return fmt.Sprintf("%s-%d-%s%s", sanitizeBaseName(base), now.UnixNano(), suffix, ext)
}

// sanitizeBaseName keeps letters, digits, dashes, underscores and dots;
// everything else becomes a dash. An empty result falls back to "upload".
func sanitizeBaseName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "upload"
	}
	return out
}
