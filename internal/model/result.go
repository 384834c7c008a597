package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// FailureKind classifies why a prediction did not succeed.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureModelNotLoaded FailureKind = "model_not_loaded"
	FailureEmptyInput     FailureKind = "empty_input"
	FailureInference      FailureKind = "inference_fault"
)

// Score is a single category's confidence, as a percentage.
type Score struct {
	Category string
	Value    float64
}

// Scores holds per-category confidences in catalog order. It marshals to a
// JSON object whose keys keep that order.
type Scores []Score

// Max returns the highest score. Ties resolve to the first in order.
func (s Scores) Max() Score {
	var best Score
	for i, sc := range s {
		if i == 0 || sc.Value > best.Value {
			best = sc
		}
	}
	return best
}

// Map returns the scores as an unordered map.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for _, sc := range s {
		m[sc.Category] = sc.Value
	}
	return m
}

func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(sc.Value, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of category scores, keeping key order.
func (s *Scores) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("scores: expected JSON object")
	}
	var out Scores
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v float64
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, Score{Category: key, Value: v})
	}
	*s = out
	return nil
}

// PredictionResult is the outcome of classifying one email. It is built once
// per request and never modified afterwards.
type PredictionResult struct {
	Success      bool        `json:"success"`
	Category     string      `json:"predicted_category,omitempty"`
	Confidence   float64     `json:"confidence,omitempty"`
	Scores       Scores      `json:"confidence_scores,omitempty"`
	Preprocessed string      `json:"preprocessed_text,omitempty"`
	Error        string      `json:"error,omitempty"`
	Kind         FailureKind `json:"failure_kind,omitempty"`

	err error
}

// Failure builds an unsuccessful result from err.
func Failure(kind FailureKind, err error) PredictionResult {
	return PredictionResult{
		Success: false,
		Error:   err.Error(),
		Kind:    kind,
		err:     err,
	}
}

// Err returns the error behind a failed result, or nil on success.
// Results decoded from JSON carry only the message.
func (r PredictionResult) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}
