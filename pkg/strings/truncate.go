// Package strings holds small string helpers for CLI output.
package strings

import (
	"strings"
)

// DefaultCellMaxLen is the default maximum width for table cells in
// formatted output.
const DefaultCellMaxLen = 60

// MinTruncateLen is the smallest usable maxLen. Anything shorter leaves
// no room for content plus the ellipsis.
const MinTruncateLen = 4

// TruncateCell truncates a string to maxLen characters for single-line
// table output. Newlines and runs of whitespace collapse to single
// spaces; a truncated value ends in "...". Rune-based slicing keeps
// multi-byte characters intact.
func TruncateCell(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// TruncateMiddle shortens a long URL-like value by cutting the middle
// out, keeping the informative start and end. Used for location columns
// where the host and the last path segment matter most.
func TruncateMiddle(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	keep := maxLen - 3
	head := keep / 2
	tail := keep - head
	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
