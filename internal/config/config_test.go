package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	EnvConfigPath,
	"MAILSORT_MODEL_DIR", "MAILSORT_VECTORIZER_PATH", "MAILSORT_CLASSIFIER_PATH",
	"MAILSORT_BACKEND", "MAILSORT_ONNX_LIB", "MAILSORT_THREADS", "MAILSORT_WORKERS",
	"MAILSORT_PREVIEW_LENGTH", "MAILSORT_ADDR", "MAILSORT_SERVER_MODE",
	"MAILSORT_MAX_BATCH", "MAILSORT_SHUTDOWN_TIMEOUT", "MAILSORT_OUTPUT",
	"MAILSORT_OUTPUT_PRETTY", "MAILSORT_OUTPUT_FILE", "MAILSORT_OUTPUT_MAX_SIZE_MB",
	"MAILSORT_LOG_LEVEL", "MAILSORT_LOG_FORMAT", "MAILSORT_BATCH_SOURCE",
	"MAILSORT_BATCH_SIZE", "MAILSORT_BATCH_FLUSH_WINDOW", "MAILSORT_BATCH_DEDUP", "MAILSORT_OUTPUT_VERBOSITY",
	"MAILSORT_WEBHOOK_URL", "MAILSORT_SOURCE_TOKEN",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailsort.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "models", cfg.Engine.ModelDir)
	assert.Equal(t, "auto", cfg.Engine.Backend)
	assert.Equal(t, 200, cfg.Engine.PreviewLength)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Server.MaxBatch)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "lines", cfg.Batch.Source)
	assert.Equal(t, 32, cfg.Batch.Size)
	assert.Equal(t, time.Second, cfg.Batch.FlushWindow)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "full", cfg.Output.Verbosity)
	assert.Empty(t, cfg.Output.WebhookURL)
	assert.False(t, cfg.Output.Pretty)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
engine:
  model_dir: /srv/models
  backend: onnx
  workers: 8
server:
  addr: ":9090"
  max_batch: 25
  shutdown_timeout: 3s
batch:
  source: jsonl
  flush_window: 250ms
  dedup: true
output:
  verbosity: minimal
  webhook_url: https://hooks.example.com/mail
  webhook_headers:
    Authorization: Bearer abc
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/models", cfg.Engine.ModelDir)
	assert.Equal(t, "onnx", cfg.Engine.Backend)
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 25, cfg.Server.MaxBatch)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "jsonl", cfg.Batch.Source)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.FlushWindow)
	assert.True(t, cfg.Batch.Dedup)
	assert.Equal(t, "minimal", cfg.Output.Verbosity)
	assert.Equal(t, "https://hooks.example.com/mail", cfg.Output.WebhookURL)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc"}, cfg.Output.WebhookHeaders)

	// Unset keys keep their defaults.
	assert.Equal(t, 200, cfg.Engine.PreviewLength)
	assert.Equal(t, "release", cfg.Server.Mode)
}

func TestLoad_FileFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "engine:\n  workers: 2\n")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Engine.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "engine:\n  workers: 2\nserver:\n  addr: \":9090\"\n")

	t.Setenv("MAILSORT_WORKERS", "16")
	t.Setenv("MAILSORT_OUTPUT_PRETTY", "true")
	t.Setenv("MAILSORT_SHUTDOWN_TIMEOUT", "500ms")
	t.Setenv("MAILSORT_BATCH_SIZE", "8")
	t.Setenv("MAILSORT_WEBHOOK_URL", "http://localhost:9999/hook")
	t.Setenv("MAILSORT_SOURCE_TOKEN", "tok")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Engine.Workers)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Output.Pretty)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Batch.Size)
	assert.Equal(t, "http://localhost:9999/hook", cfg.Output.WebhookURL)
	assert.Equal(t, "tok", cfg.Batch.SourceToken)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAILSORT_WORKERS", "many")
	t.Setenv("MAILSORT_OUTPUT_PRETTY", "maybe")
	t.Setenv("MAILSORT_SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.False(t, cfg.Output.Pretty)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "engine: [not, a, map"))
	assert.Error(t, err)
}

func TestArtifactFiles(t *testing.T) {
	e := EngineConfig{ModelDir: "models"}
	assert.Equal(t, filepath.Join("models", "tfidf_vectorizer.json"), e.VectorizerFile())
	assert.Equal(t, filepath.Join("models", "email_classifier.safetensors"), e.ClassifierFile())

	e.Backend = "onnx"
	assert.Equal(t, filepath.Join("models", "email_classifier.onnx"), e.ClassifierFile())

	e.VectorizerPath = "/tmp/vec.json"
	e.ClassifierPath = "/tmp/model.onnx"
	assert.Equal(t, "/tmp/vec.json", e.VectorizerFile())
	assert.Equal(t, "/tmp/model.onnx", e.ClassifierFile())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"backend", func(c *Config) { c.Engine.Backend = "pickle" }},
		{"workers", func(c *Config) { c.Engine.Workers = -1 }},
		{"threads", func(c *Config) { c.Engine.Threads = -2 }},
		{"preview", func(c *Config) { c.Engine.PreviewLength = -5 }},
		{"max batch", func(c *Config) { c.Server.MaxBatch = 0 }},
		{"server mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"batch source", func(c *Config) { c.Batch.Source = "csv" }},
		{"batch size", func(c *Config) { c.Batch.Size = 0 }},
		{"flush window", func(c *Config) { c.Batch.FlushWindow = -time.Second }},
		{"output format", func(c *Config) { c.Output.Format = "xml" }},
		{"verbosity", func(c *Config) { c.Output.Verbosity = "loud" }},
		{"webhook batch", func(c *Config) { c.Output.WebhookURL = "http://x"; c.Output.WebhookBatch = 0 }},
		{"output size", func(c *Config) { c.Output.MaxSizeMB = -1 }},
		{"log format", func(c *Config) { c.Log.Format = "logfmt" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Engine.Backend = "pickle"
	cfg.Log.Format = "logfmt"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.backend")
	assert.Contains(t, err.Error(), "log.format")
}
