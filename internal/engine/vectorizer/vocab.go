package vectorizer

import "fmt"

// vocab is a fitted term vocabulary. Column indices are dense: every index in
// [0, size) maps to exactly one term.
type vocab struct {
	termToID map[string]int
	idToTerm []string
}

// newVocab validates a term->column map as exported by the training job.
func newVocab(terms map[string]int) (*vocab, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("vocab: empty vocabulary")
	}

	idToTerm := make([]string, len(terms))
	seen := make([]bool, len(terms))
	for term, id := range terms {
		if id < 0 || id >= len(terms) {
			return nil, fmt.Errorf("vocab: term %q has index %d outside [0, %d)", term, id, len(terms))
		}
		if seen[id] {
			return nil, fmt.Errorf("vocab: index %d assigned to both %q and %q", id, idToTerm[id], term)
		}
		seen[id] = true
		idToTerm[id] = term
	}

	termToID := make(map[string]int, len(terms))
	for term, id := range terms {
		termToID[term] = id
	}
	return &vocab{termToID: termToID, idToTerm: idToTerm}, nil
}

// lookup returns the column for term. Unknown terms report false.
func (v *vocab) lookup(term string) (int, bool) {
	id, ok := v.termToID[term]
	return id, ok
}

// size returns the number of terms in the vocabulary.
func (v *vocab) size() int {
	return len(v.idToTerm)
}
