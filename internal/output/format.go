package output

import (
	"fmt"
	"strings"

	"github.com/hejijunhao/mailsort/internal/model"
)

// Verbosity controls how much of a result is written.
type Verbosity int

const (
	Full    Verbosity = iota // every field
	Minimal                  // category and confidence only
)

// ParseVerbosity maps "full" or "minimal" to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(s) {
	case "", "full":
		return Full, nil
	case "minimal":
		return Minimal, nil
	default:
		return Full, fmt.Errorf("output: unknown verbosity %q", s)
	}
}

// Format returns a copy of c with fields stripped according to verbosity.
// At Minimal: Scores and the preprocessed preview are dropped (omitted from
// JSON via omitempty). Failures are always kept whole.
func Format(c model.Classified, v Verbosity) model.Classified {
	if v == Minimal {
		c.Scores = nil
		c.Preprocessed = ""
	}
	return c
}
