package indexer

import (
	"strings"
	"unicode"
)

// Preprocess cleans one catalog cell for indexing and display. Surrounding
// whitespace is trimmed, CRLF line endings become "\n", and invisible format
// and control characters that spreadsheet exports leave behind (zero-width
// spaces, byte order marks, bell) are dropped. Inner whitespace, line breaks
// included, is kept as written.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.Is(unicode.Cf, r) || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
