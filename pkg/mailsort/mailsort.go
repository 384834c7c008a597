package mailsort

import (
	"fmt"

	"github.com/hejijunhao/mailsort/internal/engine"
	"github.com/hejijunhao/mailsort/internal/engine/classifier"
)

// Classifier sorts emails into categories.
// Safe for concurrent use.
type Classifier struct {
	engine *engine.Engine
}

// New creates a Classifier, loading both artifacts once. It returns an
// error only for invalid options. Artifacts that are missing or
// inconsistent leave the Classifier unloaded; check Ready and LoadErr.
func New(opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := classifier.ParseBackend(o.backend)
	if err != nil {
		return nil, fmt.Errorf("mailsort: %w", err)
	}
	if o.previewLength < 0 {
		return nil, fmt.Errorf("mailsort: preview length must be >= 0, got %d", o.previewLength)
	}

	vecPath, clsPath := resolvePaths(o)
	eng := engine.Load(
		engine.Paths{Vectorizer: vecPath, Classifier: clsPath},
		engine.WithClassifierOptions(classifier.Options{
			Backend:     backend,
			ONNXLibPath: o.onnxLibPath,
		}),
		engine.WithWorkers(o.workers),
		engine.WithPreviewLength(o.previewLength),
	)
	return &Classifier{engine: eng}, nil
}

// Ready reports whether the artifacts loaded.
func (c *Classifier) Ready() bool { return c.engine.Ready() }

// LoadErr returns why loading failed, or nil when Ready.
func (c *Classifier) LoadErr() error { return c.engine.LoadErr() }

// Predict classifies a single email.
func (c *Classifier) Predict(text string) Result {
	return resultFromPrediction(c.engine.Predict(text))
}

// PredictBatch classifies each email independently. The result at index i
// belongs to texts[i]; one failure never affects the others.
func (c *Classifier) PredictBatch(texts []string) []Result {
	preds := c.engine.PredictBatch(texts)
	results := make([]Result, len(preds))
	for i, p := range preds {
		results[i] = resultFromPrediction(p)
	}
	return results
}

// Categories returns the categories in probability order. This is
// read-only; consumers can inspect the catalog but not modify it.
func (c *Classifier) Categories() []Category {
	cats := c.engine.Categories()
	out := make([]Category, len(cats))
	for i, cat := range cats {
		out[i] = Category{Name: cat.Name, Description: cat.Desc}
	}
	return out
}

// Close releases model resources (ONNX runtime session, memory).
func (c *Classifier) Close() error {
	return c.engine.Close()
}
