package utils

import (
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizePathSegment keeps [a-zA-Z0-9._-] and maps everything else to '_'.
func SanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return unsafePathChars.ReplaceAllString(s, "_")
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func Ptr[T any](v T) *T {
	return &v
}
