package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hejijunhao/mailsort/internal/engine/catalog"
	"github.com/hejijunhao/mailsort/internal/engine/classifier"
	"github.com/hejijunhao/mailsort/internal/engine/compactor"
	"github.com/hejijunhao/mailsort/internal/engine/normalizer"
	"github.com/hejijunhao/mailsort/internal/engine/vectorizer"
	"github.com/hejijunhao/mailsort/internal/model"
)

var (
	// ErrModelNotLoaded is reported for every request to an engine whose
	// artifacts failed to load.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrEmptyInput is reported when normalization leaves nothing to classify.
	ErrEmptyInput = errors.New("email text is empty after preprocessing")
)

// probTolerance bounds how far a distribution may drift from summing to 1.
const probTolerance = 1e-3

// Paths locates the two artifacts an engine loads.
type Paths struct {
	Vectorizer string
	Classifier string
}

// DefaultPaths returns the conventional artifact names inside dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Vectorizer: filepath.Join(dir, "tfidf_vectorizer.json"),
		Classifier: filepath.Join(dir, "email_classifier.safetensors"),
	}
}

type settings struct {
	catalog    *catalog.Catalog
	normalizer *normalizer.Normalizer
	classifier classifier.Options
	workers    int
	previewLen int
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithCatalog replaces the default category catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *settings) { s.catalog = c }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalizer.Normalizer) Option {
	return func(s *settings) { s.normalizer = n }
}

// WithClassifierOptions sets how Load reads the classifier artifact.
func WithClassifierOptions(o classifier.Options) Option {
	return func(s *settings) { s.classifier = o }
}

// WithWorkers bounds PredictBatch parallelism. Values below 2 run batches
// sequentially.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithPreviewLength sets how many characters of normalized text a result
// carries. Zero or less selects compactor.DefaultMaxLen.
func WithPreviewLength(n int) Option {
	return func(s *settings) { s.previewLen = n }
}

// WithLogger sets the logger used for load events.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Engine orchestrates the normalize → vectorize → classify pipeline.
// An engine is either Ready or permanently Unloaded; it never reloads.
type Engine struct {
	catalog    *catalog.Catalog
	normalizer *normalizer.Normalizer
	vectorizer vectorizer.Vectorizer
	classifier classifier.Classifier
	compactor  *compactor.Compactor
	workers    int
	loadErr    error
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, o := range opts {
		o(&s)
	}
	if s.catalog == nil {
		s.catalog = catalog.Default()
	}
	return s
}

// Load reads both artifacts once. It never fails: on any error the engine
// is returned Unloaded with the cause available from LoadErr, and every
// prediction reports ErrModelNotLoaded.
func Load(paths Paths, opts ...Option) *Engine {
	s := newSettings(opts)

	e, err := load(paths, s)
	if err != nil {
		s.logger.Error("engine load failed",
			"vectorizer", paths.Vectorizer,
			"classifier", paths.Classifier,
			"error", err,
		)
		return &Engine{
			catalog:   s.catalog,
			compactor: compactor.New(s.previewLen),
			loadErr:   err,
		}
	}

	s.logger.Info("engine loaded",
		"vectorizer", paths.Vectorizer,
		"classifier", paths.Classifier,
		"features", e.vectorizer.Dim(),
		"categories", e.catalog.Len(),
	)
	return e
}

func load(paths Paths, s settings) (*Engine, error) {
	vec, err := vectorizer.Load(paths.Vectorizer)
	if err != nil {
		return nil, err
	}
	cls, err := classifier.Load(paths.Classifier, s.classifier)
	if err != nil {
		return nil, err
	}
	e, err := build(vec, cls, s)
	if err != nil {
		cls.Close()
		return nil, err
	}
	return e, nil
}

// New builds a Ready engine from already-constructed components. The
// classifier's classes must match the catalog in order, and its input
// dimension must match the vectorizer's output.
func New(vec vectorizer.Vectorizer, cls classifier.Classifier, opts ...Option) (*Engine, error) {
	return build(vec, cls, newSettings(opts))
}

func build(vec vectorizer.Vectorizer, cls classifier.Classifier, s settings) (*Engine, error) {
	if vec == nil || cls == nil {
		return nil, errors.New("engine: vectorizer and classifier are required")
	}
	if err := s.catalog.Validate(cls.Classes()); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if vec.Dim() != cls.InputDim() {
		return nil, fmt.Errorf("engine: vectorizer produces %d features, classifier expects %d",
			vec.Dim(), cls.InputDim())
	}

	norm := s.normalizer
	if norm == nil {
		var err error
		norm, err = normalizer.New()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	return &Engine{
		catalog:    s.catalog,
		normalizer: norm,
		vectorizer: vec,
		classifier: cls,
		compactor:  compactor.New(s.previewLen),
		workers:    s.workers,
	}, nil
}

// Ready reports whether the engine loaded successfully.
func (e *Engine) Ready() bool { return e.loadErr == nil }

// LoadErr returns why loading failed, or nil for a Ready engine.
func (e *Engine) LoadErr() error { return e.loadErr }

// Categories returns the catalog categories in probability order.
func (e *Engine) Categories() []model.Category { return e.catalog.Categories() }

// Catalog returns the catalog the engine predicts over.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// InputDim returns the feature dimension, or 0 for an Unloaded engine.
func (e *Engine) InputDim() int {
	if !e.Ready() {
		return 0
	}
	return e.vectorizer.Dim()
}

// Predict classifies one email. Failures are reported in the result, never
// as a panic.
func (e *Engine) Predict(text string) (res model.PredictionResult) {
	if !e.Ready() {
		return model.Failure(model.FailureModelNotLoaded, ErrModelNotLoaded)
	}

	defer func() {
		if r := recover(); r != nil {
			res = model.Failure(model.FailureInference, fmt.Errorf("engine: panic during inference: %v", r))
		}
	}()

	normalized := e.normalizer.Normalize(text)
	if normalized == "" {
		return model.Failure(model.FailureEmptyInput, ErrEmptyInput)
	}

	vec, err := e.vectorizer.Transform(normalized)
	if err != nil {
		return model.Failure(model.FailureInference, err)
	}

	pred, err := e.classifier.Predict(vec)
	if err != nil {
		return model.Failure(model.FailureInference, err)
	}

	best, err := e.checkDistribution(pred)
	if err != nil {
		return model.Failure(model.FailureInference, err)
	}

	names := e.catalog.Names()
	scores := make(model.Scores, len(names))
	for i, name := range names {
		scores[i] = model.Score{Category: name, Value: round2(100 * pred.Probabilities[i])}
	}

	return model.PredictionResult{
		Success:      true,
		Category:     names[best],
		Confidence:   round2(100 * pred.Probabilities[best]),
		Scores:       scores,
		Preprocessed: e.compactor.Preview(normalized),
	}
}

// checkDistribution validates the classifier output against the catalog
// and returns the index of the winning category.
func (e *Engine) checkDistribution(pred classifier.Prediction) (int, error) {
	probs := pred.Probabilities
	if len(probs) != e.catalog.Len() {
		return 0, fmt.Errorf("engine: classifier returned %d probabilities for %d categories",
			len(probs), e.catalog.Len())
	}

	var sum float64
	best := 0
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0, fmt.Errorf("engine: invalid probability %v for %q", p, e.catalog.Names()[i])
		}
		if p > probs[best] {
			best = i
		}
		sum += p
	}
	if math.Abs(sum-1) > probTolerance {
		return 0, fmt.Errorf("engine: probabilities sum to %v", sum)
	}

	if e.catalog.Index(pred.Label) != best {
		return 0, fmt.Errorf("engine: label %q disagrees with most probable category %q",
			pred.Label, e.catalog.Names()[best])
	}
	return best, nil
}

// PredictBatch classifies each text independently. The result at index i
// always belongs to texts[i].
func (e *Engine) PredictBatch(texts []string) []model.PredictionResult {
	results := make([]model.PredictionResult, len(texts))

	if e.workers < 2 || len(texts) < 2 {
		for i, text := range texts {
			results[i] = e.Predict(text)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, text := range texts {
		g.Go(func() error {
			results[i] = e.Predict(text)
			return nil
		})
	}
	g.Wait()
	return results
}

// Close releases the classifier.
func (e *Engine) Close() error {
	if e.classifier == nil {
		return nil
	}
	return e.classifier.Close()
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
