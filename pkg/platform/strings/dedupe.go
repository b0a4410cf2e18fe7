// Package strings provides small string normalization helpers shared by
// config parsing and the compliance registry.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// NormalizeCode trims and uppercases a country code so "kp", " KP " and "KP"
// address the same restriction entry.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
