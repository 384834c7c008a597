package compactor

import "unicode/utf8"

// DefaultMaxLen is the preview length used when none is configured.
const DefaultMaxLen = 200

// Compactor shortens normalized text into the preview carried on a result.
type Compactor struct {
	MaxLen int
}

// New creates a Compactor that keeps at most maxLen characters. A
// non-positive maxLen selects DefaultMaxLen.
func New(maxLen int) *Compactor {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Compactor{MaxLen: maxLen}
}

// Preview returns text unchanged if it fits, otherwise its first MaxLen
// characters followed by "...".
func (c *Compactor) Preview(text string) string {
	return truncate(text, c.MaxLen)
}

// truncate cuts s to maxLen runes, never splitting a multi-byte character.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
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
