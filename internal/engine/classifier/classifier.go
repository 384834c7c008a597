package classifier

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hejijunhao/mailsort/internal/engine/vectorizer"
)

// Prediction is the output of a single inference pass. Label is always the
// class with the highest probability in Probabilities.
type Prediction struct {
	Label         string
	Probabilities []float64 // one per class, in Classes() order
}

// Classifier maps a feature vector to a category and a probability
// distribution over all classes. Implementations must be safe for concurrent
// use and read-only after loading.
type Classifier interface {
	// Classes returns the class names in probability order.
	Classes() []string
	// InputDim is the feature dimension the model was trained on.
	InputDim() int
	// Predict derives label and probabilities from the same forward pass.
	Predict(x vectorizer.FeatureVector) (Prediction, error)
	Close() error
}

// Backend names a classifier artifact format.
type Backend string

const (
	BackendAuto   Backend = ""
	BackendLinear Backend = "linear"
	BackendONNX   Backend = "onnx"
)

// Options configures artifact loading.
type Options struct {
	Backend        Backend
	ONNXLibPath    string // shared library; defaults to libonnxruntime.so next to the model
	IntraOpThreads int
}

// ParseBackend maps a config string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "linear", "safetensors":
		return BackendLinear, nil
	case "onnx":
		return BackendONNX, nil
	default:
		return "", fmt.Errorf("classifier: unknown backend %q", s)
	}
}

// Load reads a classifier artifact. With BackendAuto the format is chosen
// from the file extension.
func Load(path string, opts Options) (Classifier, error) {
	backend := opts.Backend
	if backend == BackendAuto {
		if strings.EqualFold(filepath.Ext(path), ".onnx") {
			backend = BackendONNX
		} else {
			backend = BackendLinear
		}
	}

	switch backend {
	case BackendLinear:
		return LoadLinear(path)
	case BackendONNX:
		return LoadONNX(path, opts)
	default:
		return nil, fmt.Errorf("classifier: unknown backend %q", backend)
	}
}

func predictionFrom(classes []string, probs []float64) Prediction {
	return Prediction{
		Label:         classes[argmax(probs)],
		Probabilities: probs,
	}
}
