package classifier

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

const metadataKey = "__metadata__"

// tensor is a dense float tensor widened to float64.
type tensor struct {
	shape []int
	data  []float64 // row-major
}

// safetensors is a parsed safetensors file: named tensors plus the
// free-form string metadata block.
type safetensors struct {
	metadata map[string]string
	tensors  map[string]tensor
}

func readSafetensors(path string) (*safetensors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: %w", err)
	}
	return parseSafetensors(data)
}

// parseSafetensors decodes the layout: 8-byte LE uint64 header length, JSON
// header, then the raw tensor buffer addressed by data_offsets.
func parseSafetensors(data []byte) (*safetensors, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("safetensors: file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("safetensors: header length %d exceeds file size", headerLen)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("safetensors: failed to parse header: %w", err)
	}

	buf := data[8+headerLen:]
	st := &safetensors{
		metadata: map[string]string{},
		tensors:  make(map[string]tensor, len(header)),
	}

	for name, raw := range header {
		if name == metadataKey {
			if err := json.Unmarshal(raw, &st.metadata); err != nil {
				return nil, fmt.Errorf("safetensors: failed to parse metadata: %w", err)
			}
			continue
		}

		var meta struct {
			Dtype       string `json:"dtype"`
			Shape       []int  `json:"shape"`
			DataOffsets [2]int `json:"data_offsets"`
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: failed to parse metadata: %w", name, err)
		}

		t, err := decodeTensor(buf, meta.Dtype, meta.Shape, meta.DataOffsets)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}
		st.tensors[name] = t
	}

	return st, nil
}

func decodeTensor(buf []byte, dtype string, shape []int, offsets [2]int) (tensor, error) {
	var width int
	switch dtype {
	case "F32":
		width = 4
	case "F64":
		width = 8
	default:
		return tensor{}, fmt.Errorf("unsupported dtype %s", dtype)
	}

	n := 1
	for _, d := range shape {
		if d < 0 {
			return tensor{}, fmt.Errorf("negative dimension in shape %v", shape)
		}
		n *= d
	}

	start, end := offsets[0], offsets[1]
	if start < 0 || end < start || end > len(buf) {
		return tensor{}, fmt.Errorf("data range [%d:%d] exceeds buffer size %d", start, end, len(buf))
	}
	if end-start != n*width {
		return tensor{}, fmt.Errorf("data size %d doesn't match shape %v", end-start, shape)
	}

	values := make([]float64, n)
	raw := buf[start:end]
	for i := range values {
		switch width {
		case 4:
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		case 8:
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	}

	return tensor{shape: shape, data: values}, nil
}

// get returns the named tensor, checking its rank.
func (s *safetensors) get(name string, rank int) (tensor, error) {
	t, ok := s.tensors[name]
	if !ok {
		return tensor{}, fmt.Errorf("tensor %q not found", name)
	}
	if len(t.shape) != rank {
		return tensor{}, fmt.Errorf("tensor %q: expected rank %d, got shape %v", name, rank, t.shape)
	}
	return t, nil
}
