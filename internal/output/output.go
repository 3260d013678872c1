// Package output extracts `KEY: value` signals from raw agent output.
package output

import (
	"strings"

	"github.com/tOgg1/looper/internal/models"
)

// ParseField returns the value of the first line starting with `key:`,
// trimmed. Returns "" when no such line exists; absence is not an error.
func ParseField(text, key string) string {
	prefix := key + ":"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// ParseRecord applies an ordered output mapping to raw text. Only fields
// whose parsed value is non-empty are included; absent output keys are
// omitted entirely, never set to "".
func ParseRecord(text string, mappings []models.OutputMapping) map[string]string {
	record := make(map[string]string)
	for _, m := range mappings {
		value := ParseField(text, m.OutputKey)
		if value == "" {
			continue
		}
		record[m.StateField] = value
	}
	return record
}

// ContainsToken reports whether any line of text contains the token as a
// standalone word. Used for in-band stop signals.
func ContainsToken(text, token string) bool {
	if token == "" {
		return false
	}
	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.Fields(line) {
			if word == token {
				return true
			}
		}
	}
	return false
}
