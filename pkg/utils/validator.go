package utils

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IsValidUUID accepts the canonical 36-character form only.
func IsValidUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IsValidFilename rejects path separators, control characters and names
// longer than 255 bytes.
func IsValidFilename(filename string) bool {
	if filename == "" || len(filename) > 255 {
		return false
	}
	if strings.ContainsAny(filename, "\\/:*?\"<>|") {
		return false
	}
	for _, r := range filename {
		if r < 0x20 {
			return false
		}
	}
	return true
}

// ParseBool reads form and query flags. Empty input yields def; anything
// strconv.ParseBool rejects is an error.
func ParseBool(raw string, def bool) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(strings.ToLower(raw))
}
