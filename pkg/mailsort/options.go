package mailsort

import (
	"path/filepath"
	"strings"
)

type options struct {
	modelDir       string
	vectorizerPath string
	classifierPath string
	backend        string
	onnxLibPath    string
	workers        int
	previewLength  int
}

// Option configures a Classifier.
type Option func(*options)

// WithModelDir sets the directory containing the artifacts.
// Expects: tfidf_vectorizer.json and email_classifier.safetensors (or
// email_classifier.onnx with the "onnx" backend). Default: "models".
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithArtifactPaths sets explicit paths for both artifacts.
// Use this when the files aren't in the default directory layout.
func WithArtifactPaths(vectorizer, classifier string) Option {
	return func(o *options) {
		o.vectorizerPath = vectorizer
		o.classifierPath = classifier
	}
}

// WithBackend selects the classifier backend: "auto", "linear" or "onnx".
// "auto" picks by file extension. Default: "auto".
func WithBackend(b string) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithONNXLibrary sets the path to the ONNX Runtime shared library.
// Default: libonnxruntime.so next to the model.
func WithONNXLibrary(path string) Option {
	return func(o *options) {
		o.onnxLibPath = path
	}
}

// WithWorkers bounds PredictBatch parallelism. Values below 2 run batches
// sequentially. Default: 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithPreviewLength sets how many characters of normalized text each result
// carries. Zero selects the default of 200; negative values are rejected by
// New.
func WithPreviewLength(n int) Option {
	return func(o *options) {
		o.previewLength = n
	}
}

func defaultOptions() options {
	return options{
		backend:       "auto",
		workers:       1,
		previewLength: 200,
	}
}

// resolvePaths determines the artifact paths from the configured options.
// Explicit paths take precedence over modelDir.
func resolvePaths(o options) (vectorizer, classifier string) {
	if o.vectorizerPath != "" || o.classifierPath != "" {
		return o.vectorizerPath, o.classifierPath
	}
	dir := o.modelDir
	if dir == "" {
		dir = "models"
	}
	name := "email_classifier.safetensors"
	if strings.EqualFold(o.backend, "onnx") {
		name = "email_classifier.onnx"
	}
	return filepath.Join(dir, "tfidf_vectorizer.json"), filepath.Join(dir, name)
}
