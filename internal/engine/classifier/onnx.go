package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hejijunhao/mailsort/internal/engine/vectorizer"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs an exported classifier with a float input of shape [N, D] and a
// float probability output of shape [N, C]. Class names come from the
// "classes" custom metadata entry, or a classes.json file next to the model.
type ONNX struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	classes    []string
	inputDim   int64
}

// LoadONNX loads the model and creates an inference session. Only the
// probability output is requested; the label is its argmax.
func LoadONNX(modelPath string, opts Options) (*ONNX, error) {
	libPath := opts.ONNXLibPath
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}

	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected 1 input, got %d", len(inputs))
	}
	inDims := inputs[0].Dimensions
	if len(inDims) != 2 || inDims[1] <= 0 {
		return nil, fmt.Errorf("onnx: expected input shape [N, D] with fixed D, got %v", inDims)
	}

	output, err := probabilityOutput(outputs)
	if err != nil {
		return nil, err
	}

	classes, err := onnxClasses(modelPath)
	if err != nil {
		return nil, err
	}
	if d := output.Dimensions[1]; d > 0 && int(d) != len(classes) {
		return nil, fmt.Errorf("onnx: output has %d columns for %d classes", d, len(classes))
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()
	threads := opts.IntraOpThreads
	if threads <= 0 {
		threads = 1
	}
	sessOpts.SetIntraOpNumThreads(threads)
	sessOpts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{output.Name},
		sessOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: output.Name,
		classes:    classes,
		inputDim:   inDims[1],
	}, nil
}

// probabilityOutput picks the [N, C] tensor output, preferring one whose name
// mentions probabilities. Label outputs are ignored.
func probabilityOutput(outputs []ort.InputOutputInfo) (ort.InputOutputInfo, error) {
	var candidates []ort.InputOutputInfo
	for _, out := range outputs {
		if out.OrtValueType != ort.ONNXTypeTensor || len(out.Dimensions) != 2 {
			continue
		}
		if strings.Contains(strings.ToLower(out.Name), "prob") {
			return out, nil
		}
		candidates = append(candidates, out)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return ort.InputOutputInfo{}, fmt.Errorf("onnx: no unambiguous [N, C] probability output among %d outputs", len(outputs))
}

func onnxClasses(modelPath string) ([]string, error) {
	raw, err := classesFromMetadata(modelPath)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(modelPath), "classes.json"))
		if err != nil {
			return nil, fmt.Errorf("onnx: model has no \"classes\" metadata and no classes.json: %w", err)
		}
		raw = string(data)
	}

	var classes []string
	if err := json.Unmarshal([]byte(raw), &classes); err != nil {
		return nil, fmt.Errorf("onnx: failed to parse classes: %w", err)
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("onnx: need at least 2 classes, got %d", len(classes))
	}
	return classes, nil
}

func classesFromMetadata(modelPath string) (string, error) {
	meta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return "", fmt.Errorf("onnx: failed to read model metadata: %w", err)
	}
	defer meta.Destroy()

	value, ok, err := meta.LookupCustomMetadataMap("classes")
	if err != nil {
		return "", fmt.Errorf("onnx: failed to read classes metadata: %w", err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (o *ONNX) Classes() []string { return append([]string(nil), o.classes...) }

func (o *ONNX) InputDim() int { return int(o.inputDim) }

// Predict runs a single-row inference call.
func (o *ONNX) Predict(x vectorizer.FeatureVector) (Prediction, error) {
	if int64(x.Dim) != o.inputDim {
		return Prediction{}, fmt.Errorf("onnx: feature dimension %d, model expects %d", x.Dim, o.inputDim)
	}

	tIn, err := ort.NewTensor(ort.NewShape(1, o.inputDim), x.Dense32())
	if err != nil {
		return Prediction{}, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(o.classes))))
	if err != nil {
		return Prediction{}, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := o.session.Run([]ort.Value{tIn}, []ort.Value{tOut}); err != nil {
		return Prediction{}, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// Copy data out before tensor is destroyed.
	src := tOut.GetData()
	probs := make([]float64, len(src))
	for i, p := range src {
		if math.IsNaN(float64(p)) || p < 0 {
			return Prediction{}, fmt.Errorf("onnx: invalid probability %v at class %d", p, i)
		}
		probs[i] = float64(p)
	}

	return predictionFrom(o.classes, probs), nil
}

// Close releases the ONNX session resources.
func (o *ONNX) Close() error {
	return o.session.Destroy()
}
