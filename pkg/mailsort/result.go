package mailsort

import (
	"errors"

	"github.com/hejijunhao/mailsort/internal/engine"
	"github.com/hejijunhao/mailsort/internal/model"
)

// Failure kinds reported in Result.FailureKind.
const (
	FailureModelNotLoaded = string(model.FailureModelNotLoaded)
	FailureEmptyInput     = string(model.FailureEmptyInput)
	FailureInference      = string(model.FailureInference)
)

var (
	// ErrModelNotLoaded is returned by Result.Err when the artifacts failed
	// to load.
	ErrModelNotLoaded = engine.ErrModelNotLoaded
	// ErrEmptyInput is returned by Result.Err when nothing was left to
	// classify after preprocessing.
	ErrEmptyInput = engine.ErrEmptyInput
)

// Result is the outcome of classifying one email.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Result struct {
	Success      bool               `json:"success"`
	Category     string             `json:"predicted_category,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`        // percentage, 2 decimals
	Scores       map[string]float64 `json:"confidence_scores,omitempty"` // category -> percentage
	Preprocessed string             `json:"preprocessed_text,omitempty"` // normalized text preview
	Error        string             `json:"error,omitempty"`
	FailureKind  string             `json:"failure_kind,omitempty"`

	err error
}

// Err returns the failure cause, or nil on success. Use errors.Is with
// ErrModelNotLoaded or ErrEmptyInput to tell failures apart.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}

// Category is a classification target with its description.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func resultFromPrediction(p model.PredictionResult) Result {
	r := Result{
		Success:      p.Success,
		Category:     p.Category,
		Confidence:   p.Confidence,
		Preprocessed: p.Preprocessed,
		Error:        p.Error,
		FailureKind:  string(p.Kind),
		err:          p.Err(),
	}
	if p.Scores != nil {
		r.Scores = p.Scores.Map()
	}
	return r
}
