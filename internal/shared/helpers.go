// Package shared provides common utility functions used across multiple
// packages in the stardate-formula codebase.
package shared

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// ArtifactName returns the file name a download URL refers to, e.g.
// "stardate-1.0.0.tar.gz".  It falls back to "artifact".
func ArtifactName(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "artifact"
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "artifact"
	}
	return name
}

// Truncate shortens value to at most limit bytes, marking the cut.  The
// cut backs off to a rune boundary so the result stays valid UTF-8.
func Truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + "…"
}
