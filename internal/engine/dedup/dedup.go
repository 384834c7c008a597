// Package dedup collapses repeated email bodies so each distinct text is
// classified once per batch.
package dedup

// Batch maps a slice of texts onto its distinct members.
type Batch struct {
	// Unique holds the distinct texts in first-occurrence order.
	Unique []string
	// index[i] is the position of the i-th input text in Unique.
	index []int
}

// Collapse groups identical texts. Texts are compared byte for byte;
// normalization is deterministic, so equal inputs always classify equally.
func Collapse(texts []string) Batch {
	b := Batch{index: make([]int, len(texts))}
	seen := make(map[string]int, len(texts))

	for i, t := range texts {
		pos, ok := seen[t]
		if !ok {
			pos = len(b.Unique)
			seen[t] = pos
			b.Unique = append(b.Unique, t)
		}
		b.index[i] = pos
	}
	return b
}

// Len returns the number of input texts.
func (b Batch) Len() int { return len(b.index) }

// Duplicates returns how many input texts repeated an earlier one.
func (b Batch) Duplicates() int { return len(b.index) - len(b.Unique) }

// Expand fans results for Unique back out to one per input text, in input
// order. results must be parallel to Unique.
func Expand[T any](b Batch, results []T) []T {
	out := make([]T, len(b.index))
	for i, pos := range b.index {
		out[i] = results[pos]
	}
	return out
}
