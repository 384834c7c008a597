package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
)

func testResult() model.Classified {
	return model.Classified{
		ID: "42",
		PredictionResult: model.PredictionResult{
			Success:    true,
			Category:   "Urgent",
			Confidence: 91.25,
			Scores: model.Scores{
				{Category: "Urgent", Value: 91.25},
				{Category: "Financial", Value: 2.75},
				{Category: "HR", Value: 1},
				{Category: "General", Value: 5},
			},
			Preprocessed: "urgent server need immediate action",
		},
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputCompactJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New(output.Full, false)
		out.Write(context.Background(), testResult())
	})

	// Should be single line (NDJSON).
	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"id", "success", "predicted_category", "confidence", "confidence_scores", "preprocessed_text"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, lines[0])
		}
	}
}

func TestOutputScoresKeepCatalogOrder(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Full, false)
	out.Write(context.Background(), testResult())

	line := buf.String()
	order := []string{`"Urgent":`, `"Financial":`, `"HR":`, `"General":`}
	last := -1
	for _, key := range order {
		idx := strings.Index(line, key)
		if idx < 0 {
			t.Fatalf("missing %s in %s", key, line)
		}
		if idx < last {
			t.Fatalf("%s out of order in %s", key, line)
		}
		last = idx
	}
}

func TestOutputPrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Full, true)
	out.Write(context.Background(), testResult())

	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("expected indented JSON, got: %s", buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestOutputMinimal(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Minimal, false)
	out.Write(context.Background(), testResult())

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := m["confidence_scores"]; ok {
		t.Error("Minimal should omit confidence_scores")
	}
	if m["predicted_category"] != "Urgent" {
		t.Errorf("predicted_category = %v", m["predicted_category"])
	}
}

func TestOutputFailure(t *testing.T) {
	var buf bytes.Buffer
	out := NewWriter(&buf, output.Full, false)

	c := model.Classified{ID: "7", PredictionResult: model.PredictionResult{
		Error: "model not loaded",
		Kind:  model.FailureModelNotLoaded,
	}}
	out.Write(context.Background(), c)

	var m map[string]any
	json.Unmarshal(buf.Bytes(), &m)
	if m["success"] != false {
		t.Errorf("success = %v, want false", m["success"])
	}
	if m["error"] != "model not loaded" || m["failure_kind"] != "model_not_loaded" {
		t.Errorf("unexpected failure fields: %v", m)
	}
	if _, ok := m["predicted_category"]; ok {
		t.Error("failure should not carry predicted_category")
	}
}
