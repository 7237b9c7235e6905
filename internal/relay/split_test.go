// ABOUTME: Property-style tests for message splitting
// ABOUTME: Every chunk fits the limit and the chunks rejoin to the input

package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit_Properties(t *testing.T) {
	inputs := []string{
		"",
		"short",
		"line one\nline two\nline three\n",
		strings.Repeat("a", 250),
		strings.Repeat("word ", 80) + "\n" + strings.Repeat("x", 130) + "\n\n\nend",
		strings.Repeat("héllo wörld ✓\n", 40),
		strings.Repeat("日本語", 60),
		"\n\n\n\n",
	}
	limits := []int{1, 3, 7, 16, 50, 100, 4096}

	for _, text := range inputs {
		for _, limit := range limits {
			chunks := Split(text, limit)
			assert.Equal(t, text, strings.Join(chunks, ""), "lossless for limit %d", limit)
			for _, c := range chunks {
				if limit >= 3 {
					assert.LessOrEqual(t, len(c), limit, "chunk %q over limit %d", c, limit)
				}
			}
			assert.Equal(t, chunks, Split(text, limit), "deterministic")
		}
	}
}

func TestSplit_PrefersLineBoundaries(t *testing.T) {
	text := "aaaa\nbbbb\ncccc\n"
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, Split(text, 11))
}

func TestSplit_HardSplitsLongLines(t *testing.T) {
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, Split("abcdefghij", 4))
}

func TestSplit_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; a cut at byte 3 would land inside the second one.
	chunks := Split("aéé", 4)
	assert.Equal(t, []string{"aé", "é"}, chunks)
}

func TestSplit_FitsUnchanged(t *testing.T) {
	assert.Equal(t, []string{"hello"}, Split("hello", 5))
	assert.Equal(t, []string{""}, Split("", 10))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "héé", Truncate("hééllo", 3))
	assert.Equal(t, "short", Truncate("short", 10))
}
