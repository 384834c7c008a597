package vectorizer

import (
	"encoding/json"
	"fmt"
	"os"
)

// Vectorizer maps normalized text to a fixed-dimension feature vector using a
// vocabulary fitted offline. Implementations must be safe for concurrent use
// and must never change their vocabulary after loading.
type Vectorizer interface {
	Transform(text string) (FeatureVector, error)
	Dim() int
}

// FeatureVector is a sparse row vector. Indices are strictly increasing and
// every index is below Dim.
type FeatureVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// Dense32 expands the vector to float32, the input type ONNX models expect.
func (v FeatureVector) Dense32() []float32 {
	out := make([]float32, v.Dim)
	for i, idx := range v.Indices {
		out[idx] = float32(v.Values[i])
	}
	return out
}

// Load reads a vectorizer artifact, dispatching on its "type" field.
func Load(path string) (Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("vectorizer: parse %s: %w", path, err)
	}

	switch head.Type {
	case "tfidf", "":
		var a TFIDFArtifact
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("vectorizer: parse %s: %w", path, err)
		}
		v, err := NewTFIDF(a)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("vectorizer: unsupported artifact type %q in %s", head.Type, path)
	}
}
