// ABOUTME: Splits long text into transport-sized chunks at line boundaries
// ABOUTME: Lossless: concatenating the chunks reproduces the input exactly

package relay

import (
	"strings"
	"unicode/utf8"
)

// Split breaks text into chunks of at most limit bytes. Chunks end after a
// newline where possible; a line longer than limit is cut at the limit,
// backing off to a rune boundary. Newlines stay attached to the chunk they
// end, so joining the chunks returns text unchanged.
func Split(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n') + 1
		if cut == 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				// A single rune wider than limit.
				cut = limit
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
