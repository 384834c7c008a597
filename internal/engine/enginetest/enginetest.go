// Package enginetest provides a labeled email corpus and a small keyword
// model for tests that need real artifacts on disk.
package enginetest

import (
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/hejijunhao/mailsort/internal/engine/catalog"
	"github.com/hejijunhao/mailsort/internal/engine/classifier"
)

//go:embed corpus.json
var corpusJSON []byte

// CorpusEntry is a labeled email for classification validation.
type CorpusEntry struct {
	Email            string `json:"email"`
	ExpectedCategory string `json:"expected_category"`
	Description      string `json:"description"`
}

// LoadCorpus parses the embedded corpus.json and returns all entries.
func LoadCorpus() ([]CorpusEntry, error) {
	var entries []CorpusEntry
	if err := json.Unmarshal(corpusJSON, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return entries, nil
}

// Keywords lists the vocabulary of the fixture model per category. Inflected
// forms are listed alongside base forms so the model does not depend on
// which lemma the normalizer picks.
var Keywords = map[string][]string{
	"Urgent":    {"urgent", "immediate", "immediately", "critical", "server", "servers", "outage", "asap", "emergency"},
	"Financial": {"financial", "budget", "allocation", "invoice", "invoices", "payment", "payments", "expense", "expenses", "reimbursement"},
	"HR":        {"employee", "employees", "onboarding", "hire", "hiring", "interview", "interviews", "benefit", "benefits", "enrollment"},
	"General":   {"meeting", "meetings", "team", "lunch", "reschedule", "rescheduled", "thursday", "afternoon", "office", "update"},
}

// weight is the coefficient a keyword carries for its own category.
const weight = 4.0

// File names written by WriteArtifacts, matching the engine defaults.
const (
	VectorizerFile = "tfidf_vectorizer.json"
	ClassifierFile = "email_classifier.safetensors"
)

// WriteArtifacts writes a TF-IDF vectorizer and a multinomial logistic
// regression classifier into dir. Classes follow the default catalog.
func WriteArtifacts(dir string) (vectorizerPath, classifierPath string, err error) {
	classes := catalog.Default().Names()

	var terms []string
	for _, class := range classes {
		terms = append(terms, Keywords[class]...)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = 1
	}

	vec, err := json.Marshal(map[string]any{
		"type":        "tfidf",
		"vocabulary":  vocab,
		"idf":         idf,
		"ngram_range": []int{1, 1},
		"norm":        "l2",
	})
	if err != nil {
		return "", "", err
	}
	vectorizerPath = filepath.Join(dir, VectorizerFile)
	if err := os.WriteFile(vectorizerPath, vec, 0o644); err != nil {
		return "", "", err
	}

	coef := make([]float64, len(classes)*len(terms))
	for c, class := range classes {
		for _, kw := range Keywords[class] {
			coef[c*len(terms)+vocab[kw]] = weight
		}
	}

	classifierPath = filepath.Join(dir, ClassifierFile)
	if err := writeSafetensors(classifierPath, classes, coef, len(terms)); err != nil {
		return "", "", err
	}
	return vectorizerPath, classifierPath, nil
}

func writeSafetensors(path string, classes []string, coef []float64, dim int) error {
	classesJSON, err := json.Marshal(classes)
	if err != nil {
		return err
	}

	var data []byte
	for _, v := range coef {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(float32(v)))
	}
	intercept := len(data)
	for range classes {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(0))
	}

	header, err := json.Marshal(map[string]any{
		"__metadata__": map[string]string{
			"kind":    classifier.KindLogistic,
			"classes": string(classesJSON),
		},
		"coef": map[string]any{
			"dtype":        "F32",
			"shape":        []int{len(classes), dim},
			"data_offsets": []int{0, intercept},
		},
		"intercept": map[string]any{
			"dtype":        "F32",
			"shape":        []int{len(classes)},
			"data_offsets": []int{intercept, len(data)},
		},
	})
	if err != nil {
		return err
	}

	file := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	file = append(file, header...)
	file = append(file, data...)
	return os.WriteFile(path, file, 0o644)
}
