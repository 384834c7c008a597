package classifier

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hejijunhao/mailsort/internal/engine/vectorizer"
)

const testModelPath = "../../../models/email_classifier.onnx"

// testONNXLib is the runtime library the ONNX tests load: MAILSORT_ONNX_LIB
// when set, otherwise libonnxruntime.so next to the model, as LoadONNX does.
func testONNXLib() string {
	if lib := os.Getenv("MAILSORT_ONNX_LIB"); lib != "" {
		return lib
	}
	return filepath.Join(filepath.Dir(testModelPath), "libonnxruntime.so")
}

// onnxOptions skips the test unless both the exported model and the
// onnxruntime shared library are present.
func onnxOptions(t *testing.T) Options {
	t.Helper()
	if _, err := os.Stat(testModelPath); err != nil {
		t.Skipf("ONNX model fixture %s not found; export the classifier to ONNX there to run this test", testModelPath)
	}
	lib := testONNXLib()
	if _, err := os.Stat(lib); err != nil {
		t.Skipf("onnxruntime library %s not found; set MAILSORT_ONNX_LIB to its path", lib)
	}
	return Options{ONNXLibPath: lib}
}

func TestONNXLibDefaultsNextToModel(t *testing.T) {
	t.Setenv("MAILSORT_ONNX_LIB", "")
	if got, want := testONNXLib(), filepath.Join("..", "..", "..", "models", "libonnxruntime.so"); got != want {
		t.Errorf("testONNXLib() = %q, want %q", got, want)
	}
	t.Setenv("MAILSORT_ONNX_LIB", "/opt/ort/libonnxruntime.so")
	if got := testONNXLib(); got != "/opt/ort/libonnxruntime.so" {
		t.Errorf("testONNXLib() = %q, want the MAILSORT_ONNX_LIB value", got)
	}
}

func TestONNXLoad(t *testing.T) {
	clf, err := LoadONNX(testModelPath, onnxOptions(t))
	if err != nil {
		t.Fatalf("failed to load ONNX classifier: %v", err)
	}
	defer clf.Close()

	if clf.InputDim() <= 0 {
		t.Errorf("expected positive InputDim, got %d", clf.InputDim())
	}
	if len(clf.Classes()) < 2 {
		t.Errorf("expected at least 2 classes, got %v", clf.Classes())
	}

	t.Logf("input: %s, output: %s", clf.inputName, clf.outputName)
	t.Logf("classes: %v", clf.Classes())
}

func TestONNXPredict(t *testing.T) {
	clf, err := LoadONNX(testModelPath, onnxOptions(t))
	if err != nil {
		t.Fatalf("failed to load ONNX classifier: %v", err)
	}
	defer clf.Close()

	// All-zero input still yields a valid distribution.
	x := vectorizer.FeatureVector{Dim: clf.InputDim()}
	pred, err := clf.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if len(pred.Probabilities) != len(clf.Classes()) {
		t.Fatalf("expected %d probabilities, got %d", len(clf.Classes()), len(pred.Probabilities))
	}
	var sum float64
	for _, p := range pred.Probabilities {
		sum += p
	}
	if math.Abs(sum-1) > 1e-3 {
		t.Errorf("probabilities sum to %f", sum)
	}
	if pred.Label != clf.Classes()[argmax(pred.Probabilities)] {
		t.Errorf("label %q is not the argmax class", pred.Label)
	}
}

func TestONNXPredictDimensionMismatch(t *testing.T) {
	clf, err := LoadONNX(testModelPath, onnxOptions(t))
	if err != nil {
		t.Fatalf("failed to load ONNX classifier: %v", err)
	}
	defer clf.Close()

	if _, err := clf.Predict(vectorizer.FeatureVector{Dim: clf.InputDim() + 1}); err == nil {
		t.Error("expected error for wrong feature dimension")
	}
}
