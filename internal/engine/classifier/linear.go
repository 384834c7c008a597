package classifier

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hejijunhao/mailsort/internal/engine/vectorizer"
)

// Linear model kinds stored under the "kind" metadata key.
const (
	KindLogistic    = "logistic_regression"     // multinomial softmax
	KindLogisticOVR = "logistic_regression_ovr" // one-vs-rest sigmoid, renormalized
	KindMultinomNB  = "multinomial_nb"
)

// Linear is a classifier whose scores are an affine function of the
// feature vector: scores = W·x + b. The kind decides how scores become
// probabilities.
//
// Binary logistic models store a single row; the score is for the second
// class.
type Linear struct {
	kind    string
	classes []string
	weights []float64 // row-major [rows, dim]
	bias    []float64 // [rows]
	rows    int
	dim     int
}

// NewLinear builds a linear classifier from raw parameters.
func NewLinear(kind string, classes []string, weights, bias []float64, dim int) (*Linear, error) {
	if len(classes) < 2 {
		return nil, fmt.Errorf("linear: need at least 2 classes, got %d", len(classes))
	}
	if dim <= 0 {
		return nil, fmt.Errorf("linear: invalid input dimension %d", dim)
	}
	if len(weights)%dim != 0 {
		return nil, fmt.Errorf("linear: %d weights is not a multiple of dim %d", len(weights), dim)
	}
	rows := len(weights) / dim

	switch kind {
	case KindLogistic, KindLogisticOVR:
		binary := len(classes) == 2 && rows == 1
		if !binary && rows != len(classes) {
			return nil, fmt.Errorf("linear: %s has %d weight rows for %d classes", kind, rows, len(classes))
		}
	case KindMultinomNB:
		if rows != len(classes) {
			return nil, fmt.Errorf("linear: %s has %d weight rows for %d classes", kind, rows, len(classes))
		}
	default:
		return nil, fmt.Errorf("linear: unknown model kind %q", kind)
	}

	if bias == nil {
		bias = make([]float64, rows)
	}
	if len(bias) != rows {
		return nil, fmt.Errorf("linear: bias length %d, want %d", len(bias), rows)
	}
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("linear: weights contain non-finite values")
		}
	}
	for _, b := range bias {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("linear: bias contains non-finite values")
		}
	}

	return &Linear{
		kind:    kind,
		classes: append([]string(nil), classes...),
		weights: weights,
		bias:    bias,
		rows:    rows,
		dim:     dim,
	}, nil
}

// LoadLinear reads a linear classifier from a safetensors file. Metadata
// carries "kind" and "classes" (a JSON array). Logistic models store
// "coef" [rows, dim] and optional "intercept" [rows]; naive Bayes stores
// "feature_log_prob" [classes, dim] and "class_log_prior" [classes].
func LoadLinear(path string) (*Linear, error) {
	st, err := readSafetensors(path)
	if err != nil {
		return nil, fmt.Errorf("linear: %w", err)
	}

	kind := st.metadata["kind"]
	if kind == "" {
		kind = KindLogistic
	}

	rawClasses, ok := st.metadata["classes"]
	if !ok {
		return nil, fmt.Errorf("linear: metadata missing \"classes\"")
	}
	var classes []string
	if err := json.Unmarshal([]byte(rawClasses), &classes); err != nil {
		return nil, fmt.Errorf("linear: failed to parse classes: %w", err)
	}

	weightName, biasName := "coef", "intercept"
	if kind == KindMultinomNB {
		weightName, biasName = "feature_log_prob", "class_log_prior"
	}

	w, err := st.get(weightName, 2)
	if err != nil {
		return nil, fmt.Errorf("linear: %w", err)
	}

	var bias []float64
	if b, err := st.get(biasName, 1); err == nil {
		bias = b.data
	} else if kind == KindMultinomNB {
		return nil, fmt.Errorf("linear: %w", err)
	}

	return NewLinear(kind, classes, w.data, bias, w.shape[1])
}

func (l *Linear) Classes() []string { return append([]string(nil), l.classes...) }

func (l *Linear) InputDim() int { return l.dim }

// Predict computes class probabilities and the argmax label from one pass.
func (l *Linear) Predict(x vectorizer.FeatureVector) (Prediction, error) {
	if x.Dim != l.dim {
		return Prediction{}, fmt.Errorf("linear: feature dimension %d, model expects %d", x.Dim, l.dim)
	}

	scores := l.decision(x)

	var probs []float64
	switch l.kind {
	case KindLogistic:
		if l.rows == 1 {
			probs = softmax([]float64{-scores[0], scores[0]})
		} else {
			probs = softmax(scores)
		}
	case KindLogisticOVR:
		if l.rows == 1 {
			p := sigmoid(scores[0])
			probs = []float64{1 - p, p}
		} else {
			probs = make([]float64, len(scores))
			var sum float64
			for i, s := range scores {
				probs[i] = sigmoid(s)
				sum += probs[i]
			}
			for i := range probs {
				probs[i] /= sum
			}
		}
	case KindMultinomNB:
		probs = softmax(scores)
	}

	return predictionFrom(l.classes, probs), nil
}

// decision returns W·x + b, walking only the non-zero features.
func (l *Linear) decision(x vectorizer.FeatureVector) []float64 {
	scores := make([]float64, l.rows)
	for r := 0; r < l.rows; r++ {
		row := l.weights[r*l.dim : (r+1)*l.dim]
		sum := l.bias[r]
		for k, idx := range x.Indices {
			sum += row[idx] * x.Values[k]
		}
		scores[r] = sum
	}
	return scores
}

func (l *Linear) Close() error { return nil }
