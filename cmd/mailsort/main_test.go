package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hejijunhao/mailsort/internal/config"
	"github.com/hejijunhao/mailsort/internal/engine/enginetest"
	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output/webhook"
	"github.com/hejijunhao/mailsort/internal/pipeline"
)

func init() {
	color.NoColor = true
}

// isolate keeps the developer's environment and any .env file out of the
// test by running in an empty directory with MAILSORT_* cleared.
func isolate(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "MAILSORT_") {
			t.Setenv(key, "")
		}
	}
	t.Chdir(t.TempDir())
}

func modelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, _, err := enginetest.WriteArtifacts(dir)
	require.NoError(t, err)
	return dir
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestPredictCommand(t *testing.T) {
	isolate(t)
	dir := modelDir(t)

	out, _, err := run(t, "", "--model-dir", dir, "predict", "URGENT:", "Server", "is", "down!")
	require.NoError(t, err)

	var res model.PredictionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "Urgent", res.Category)
}

func TestPredictCommandStdinAndFailure(t *testing.T) {
	isolate(t)
	dir := modelDir(t)

	out, _, err := run(t, "Invoice and payment attached", "--model-dir", dir, "predict")
	require.NoError(t, err)
	assert.Contains(t, out, `"predicted_category": "Financial"`)

	out, _, err = run(t, "   ", "--model-dir", dir, "predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
	assert.Contains(t, out, `"failure_kind": "empty_input"`)
}

func TestPredictCommandMissingModel(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "--model-dir", t.TempDir(), "predict", "hello")
	require.Error(t, err)
	assert.Equal(t, "model not loaded", err.Error())
}

func TestBatchCommandJSONL(t *testing.T) {
	isolate(t)
	dir := modelDir(t)

	input := strings.Join([]string{
		`{"id":"m1","email":"HR Department: New employee onboarding scheduled for Monday."}`,
		`{"id":"m2","email":"Team meeting rescheduled to Thursday afternoon."}`,
		`{"id":"m3","email":"!!!"}`,
	}, "\n")

	out, errOut, err := run(t, input, "--model-dir", dir, "batch", "--format", "jsonl")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)

	var first model.Classified
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "m1", first.ID)
	assert.Equal(t, "HR", first.Category)

	var third model.Classified
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &third))
	assert.False(t, third.Success)
	assert.Equal(t, model.FailureEmptyInput, third.Kind)

	assert.Contains(t, errOut, "classified 3 emails")
	assert.Contains(t, errOut, "2 ok")
}

func TestBatchCommandTableAndFile(t *testing.T) {
	isolate(t)
	dir := modelDir(t)
	resultsFile := filepath.Join(t.TempDir(), "results.ndjson")

	input := "Lunch with the team on Friday at the office.\nInvoice for last month's payment.\n"
	out, _, err := run(t, input, "--model-dir", dir, "batch", "-o", "table", "--out-file", resultsFile)
	require.NoError(t, err)

	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "General")
	assert.Contains(t, out, "Financial")

	data, err := os.ReadFile(resultsFile)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestBatchCommandWebhookMirror(t *testing.T) {
	isolate(t)
	dir := modelDir(t)

	var mu sync.Mutex
	var got []webhook.Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p webhook.Payload
		json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	}))
	defer srv.Close()

	_, _, err := run(t, "Critical outage now\nBudget review\n", "--model-dir", dir, "batch", "--webhook", srv.URL)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "Urgent", got[0].Results[0].Category)
}

func TestPrintSummaryStableOrder(t *testing.T) {
	s := pipeline.Summary{
		Total:      9,
		Succeeded:  3,
		Failed:     6,
		ByCategory: map[string]int{"HR": 1, "Urgent": 2},
		ByFailure: map[model.FailureKind]int{
			model.FailureInference:  3,
			model.FailureEmptyInput: 3,
		},
	}

	var first string
	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		printSummary(&buf, s)
		if i == 0 {
			first = buf.String()
			continue
		}
		require.Equal(t, first, buf.String(), "summary output changed between runs")
	}

	urgent, hr := strings.Index(first, "Urgent"), strings.Index(first, "HR")
	empty, fault := strings.Index(first, "empty_input"), strings.Index(first, "inference_fault")
	require.True(t, urgent >= 0 && hr >= 0 && empty >= 0 && fault >= 0, first)
	assert.Less(t, urgent, hr)
	assert.Less(t, hr, empty)
	assert.Less(t, empty, fault)
}

func TestBatchCommandURLInput(t *testing.T) {
	isolate(t)
	dir := modelDir(t)
	t.Setenv("MAILSORT_SOURCE_TOKEN", "inbox-token")

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"r1","email":"Benefits enrollment for new employees"}` + "\n"))
	}))
	defer srv.Close()

	// The .jsonl path selects the jsonl reader without --format.
	out, _, err := run(t, "", "--model-dir", dir, "batch", srv.URL+"/inbox.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "Bearer inbox-token", gotAuth)

	var res model.Classified
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &res))
	assert.Equal(t, "r1", res.ID)
	assert.Equal(t, "HR", res.Category)
}

func TestBatchCommandURLNotFound(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, _, err := run(t, "", "--model-dir", modelDir(t), "batch", srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestBatchCommandMissingInput(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "--model-dir", modelDir(t), "batch", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestBatchCommandInvalidFlags(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "", "batch", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.source")
}

func TestCategoriesCommand(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "categories")
	require.NoError(t, err)
	for _, name := range []string{"Urgent", "Financial", "HR", "General"} {
		assert.Contains(t, out, name)
	}

	out, _, err = run(t, "", "categories", "--json")
	require.NoError(t, err)
	var cats []model.Category
	require.NoError(t, json.Unmarshal([]byte(out), &cats))
	require.Len(t, cats, 4)
	assert.Equal(t, "Human resources, employee, hiring, and benefits related", cats[2].Desc)
}

func TestCheckCommand(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "--model-dir", modelDir(t), "check")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ vectorizer")
	assert.Contains(t, out, "sample prediction: Urgent")

	out, _, err = run(t, "", "--model-dir", t.TempDir(), "check")
	require.Error(t, err)
	assert.Contains(t, out, "✗ vectorizer")
	assert.Contains(t, out, "✗ classifier")
}

func TestConfigFileFlag(t *testing.T) {
	isolate(t)
	dir := modelDir(t)

	path := filepath.Join(t.TempDir(), "mailsort.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  model_dir: "+dir+"\n"), 0o644))

	out, _, err := run(t, "", "--config", path, "check")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "tfidf_vectorizer.json"))
}

func TestServeCommandShutsDown(t *testing.T) {
	isolate(t)
	t.Setenv("MAILSORT_SHUTDOWN_TIMEOUT", "1s")

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--log-level", "error", "--model-dir", modelDir(t), "serve", "--addr", "127.0.0.1:0"})
	cmd.SetOut(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestLoadEngineRejectsBackend(t *testing.T) {
	e := config.Default().Engine
	e.Backend = "pickle"
	_, err := loadEngine(e)
	assert.Error(t, err)
}
