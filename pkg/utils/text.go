// Package utils provides shared helpers for text, vectors, retries, and logging.
package utils

// Truncate returns s cut to at most maxLen runes, with "..." appended when
// anything was cut. Multi-byte characters are never split. A maxLen of 0 or
// less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
