package vectorizer

import (
	"fmt"
	"math"
	"sort"
)

// TFIDFArtifact is the serialized form of a fitted TF-IDF vectorizer, as
// exported by the training job.
type TFIDFArtifact struct {
	Type         string         `json:"type"`
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	NgramRange   [2]int         `json:"ngram_range"`
	SublinearTF  bool           `json:"sublinear_tf"`
	Binary       bool           `json:"binary"`
	UseIDF       *bool          `json:"use_idf,omitempty"`   // default true
	Norm         *string        `json:"norm,omitempty"`      // "l2" (default), "l1", "" for none
	Lowercase    *bool          `json:"lowercase,omitempty"` // default true
	TokenPattern string         `json:"token_pattern,omitempty"`
	StopWords    []string       `json:"stop_words,omitempty"`
}

// TFIDF is a read-only, fitted TF-IDF transform.
type TFIDF struct {
	vocab     *vocab
	idf       []float64
	analyzer  *analyzer
	sublinear bool
	binary    bool
	useIDF    bool
	norm      string
}

// NewTFIDF validates an artifact and builds the transform.
func NewTFIDF(a TFIDFArtifact) (*TFIDF, error) {
	v, err := newVocab(a.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	useIDF := a.UseIDF == nil || *a.UseIDF
	if useIDF && len(a.IDF) != v.size() {
		return nil, fmt.Errorf("vectorizer: idf has %d weights for %d vocabulary terms", len(a.IDF), v.size())
	}
	for i, w := range a.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("vectorizer: idf[%d] = %v is not a finite non-negative weight", i, w)
		}
	}

	norm := "l2"
	if a.Norm != nil {
		norm = *a.Norm
	}
	switch norm {
	case "l1", "l2", "":
	case "none":
		norm = ""
	default:
		return nil, fmt.Errorf("vectorizer: unsupported norm %q", norm)
	}

	lowercase := a.Lowercase == nil || *a.Lowercase
	an, err := newAnalyzer(a.TokenPattern, lowercase, a.StopWords, a.NgramRange)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	return &TFIDF{
		vocab:     v,
		idf:       a.IDF,
		analyzer:  an,
		sublinear: a.SublinearTF,
		binary:    a.Binary,
		useIDF:    useIDF,
		norm:      norm,
	}, nil
}

// Dim returns the vocabulary size, which is the feature dimension.
func (t *TFIDF) Dim() int {
	return t.vocab.size()
}

// Transform computes the weighted, normalized term vector for text. Terms
// outside the fitted vocabulary are ignored; text with no known terms yields
// an all-zero vector.
func (t *TFIDF) Transform(text string) (FeatureVector, error) {
	counts := make(map[int]int)
	for _, term := range t.analyzer.analyze(text) {
		if id, ok := t.vocab.lookup(term); ok {
			counts[id]++
		}
	}

	vec := FeatureVector{
		Dim:     t.vocab.size(),
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	if len(counts) == 0 {
		return vec, nil
	}

	for id := range counts {
		vec.Indices = append(vec.Indices, id)
	}
	sort.Ints(vec.Indices)

	var sum, sumSq float64
	for _, id := range vec.Indices {
		tf := float64(counts[id])
		switch {
		case t.binary:
			tf = 1
		case t.sublinear:
			tf = 1 + math.Log(tf)
		}
		w := tf
		if t.useIDF {
			w *= t.idf[id]
		}
		vec.Values = append(vec.Values, w)
		sum += math.Abs(w)
		sumSq += w * w
	}

	var denom float64
	switch t.norm {
	case "l2":
		denom = math.Sqrt(sumSq)
	case "l1":
		denom = sum
	}
	if denom > 0 {
		for i := range vec.Values {
			vec.Values[i] /= denom
		}
	}
	return vec, nil
}
