package output

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hejijunhao/mailsort/internal/model"
)

func baseResult() model.Classified {
	return model.Classified{
		ID: "msg-1",
		PredictionResult: model.PredictionResult{
			Success:    true,
			Category:   "Financial",
			Confidence: 81.5,
			Scores: model.Scores{
				{Category: "Urgent", Value: 5},
				{Category: "Financial", Value: 81.5},
				{Category: "HR", Value: 3.5},
				{Category: "General", Value: 10},
			},
			Preprocessed: "invoice payment due friday",
		},
	}
}

func TestFormatMinimal(t *testing.T) {
	c := Format(baseResult(), Minimal)

	if c.Scores != nil {
		t.Fatal("Scores should be nil at Minimal")
	}
	if c.Preprocessed != "" {
		t.Fatal("Preprocessed should be empty at Minimal")
	}
	if c.Category != "Financial" {
		t.Fatal("Category should be preserved")
	}
	if c.Confidence != 81.5 {
		t.Fatal("Confidence should be preserved")
	}
	if c.ID != "msg-1" {
		t.Fatal("ID should be preserved")
	}
}

func TestFormatFull(t *testing.T) {
	orig := baseResult()
	c := Format(orig, Full)

	if len(c.Scores) != 4 {
		t.Fatalf("Scores length = %d, want 4", len(c.Scores))
	}
	if c.Preprocessed != orig.Preprocessed {
		t.Fatal("Preprocessed should be preserved at Full")
	}
}

func TestFormatDoesNotMutateInput(t *testing.T) {
	orig := baseResult()
	_ = Format(orig, Minimal)
	if orig.Scores == nil || orig.Preprocessed == "" {
		t.Fatal("Format mutated its input")
	}
}

func TestFormatMinimalJSON(t *testing.T) {
	data, err := json.Marshal(Format(baseResult(), Minimal))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["confidence_scores"]; ok {
		t.Error("confidence_scores should be omitted at Minimal")
	}
	if _, ok := m["preprocessed_text"]; ok {
		t.Error("preprocessed_text should be omitted at Minimal")
	}
	if m["predicted_category"] != "Financial" {
		t.Errorf("predicted_category = %v", m["predicted_category"])
	}
}

func TestFormatKeepsFailures(t *testing.T) {
	c := model.Classified{
		ID:               "msg-2",
		PredictionResult: model.Failure(model.FailureEmptyInput, errors.New("email text is empty after preprocessing")),
	}
	got := Format(c, Minimal)
	if got.Error != c.Error || got.Kind != model.FailureEmptyInput {
		t.Errorf("failure fields changed: %+v", got)
	}
}

func TestParseVerbosity(t *testing.T) {
	tests := []struct {
		in      string
		want    Verbosity
		wantErr bool
	}{
		{"", Full, false},
		{"full", Full, false},
		{"MINIMAL", Minimal, false},
		{"verbose", Full, true},
	}
	for _, tt := range tests {
		got, err := ParseVerbosity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVerbosity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseVerbosity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
