package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that points at a YAML config file.
const EnvConfigPath = "MAILSORT_CONFIG"

// Config holds all mailsort configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Server ServerConfig `yaml:"server"`
	Batch  BatchConfig  `yaml:"batch"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig holds artifact locations and inference settings.
type EngineConfig struct {
	ModelDir       string `yaml:"model_dir"`
	VectorizerPath string `yaml:"vectorizer_path"` // defaults to <model_dir>/tfidf_vectorizer.json
	ClassifierPath string `yaml:"classifier_path"` // defaults by backend inside model_dir
	Backend        string `yaml:"backend"`         // "auto", "linear", "onnx"
	ONNXLibPath    string `yaml:"onnx_lib_path"`
	Threads        int    `yaml:"threads"`        // ONNX intra-op threads
	Workers        int    `yaml:"workers"`        // batch parallelism; <2 is sequential
	PreviewLength  int    `yaml:"preview_length"` // 0 means the 200 character default
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: "release", "debug", "test"
	MaxBatch        int           `yaml:"max_batch"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BatchConfig holds settings for the offline batch pipeline.
type BatchConfig struct {
	Source      string        `yaml:"source"` // "lines" or "jsonl"
	Size        int           `yaml:"size"`   // emails per engine call
	FlushWindow time.Duration `yaml:"flush_window"`
	Dedup       bool          `yaml:"dedup"`        // classify repeated bodies once per batch
	SourceToken string        `yaml:"source_token"` // Bearer token for http(s) inputs
}

// OutputConfig holds batch output settings.
type OutputConfig struct {
	Format         string            `yaml:"format"`    // "json" or "table"
	Verbosity      string            `yaml:"verbosity"` // "full" or "minimal"
	Pretty         bool              `yaml:"pretty"`
	File           string            `yaml:"file"` // also append NDJSON results here when set
	MaxSizeMB      int               `yaml:"max_size_mb"`
	MaxBackups     int               `yaml:"max_backups"`
	WebhookURL     string            `yaml:"webhook_url"`
	WebhookHeaders map[string]string `yaml:"webhook_headers"`
	WebhookBatch   int               `yaml:"webhook_batch"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			ModelDir:      "models",
			Backend:       "auto",
			Threads:       1,
			Workers:       4,
			PreviewLength: 200,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			Mode:            "release",
			MaxBatch:        100,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Batch: BatchConfig{
			Source:      "lines",
			Size:        32,
			FlushWindow: time.Second,
		},
		Output: OutputConfig{
			Format:       "json",
			Verbosity:    "full",
			MaxSizeMB:    50,
			MaxBackups:   3,
			WebhookBatch: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds configuration from defaults, then the YAML file at path (or
// $MAILSORT_CONFIG when path is empty), then MAILSORT_* environment
// variables. A missing explicit file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	e := &cfg.Engine
	e.ModelDir = getenv("MAILSORT_MODEL_DIR", e.ModelDir)
	e.VectorizerPath = getenv("MAILSORT_VECTORIZER_PATH", e.VectorizerPath)
	e.ClassifierPath = getenv("MAILSORT_CLASSIFIER_PATH", e.ClassifierPath)
	e.Backend = getenv("MAILSORT_BACKEND", e.Backend)
	e.ONNXLibPath = getenv("MAILSORT_ONNX_LIB", e.ONNXLibPath)
	e.Threads = getenvInt("MAILSORT_THREADS", e.Threads)
	e.Workers = getenvInt("MAILSORT_WORKERS", e.Workers)
	e.PreviewLength = getenvInt("MAILSORT_PREVIEW_LENGTH", e.PreviewLength)

	s := &cfg.Server
	s.Addr = getenv("MAILSORT_ADDR", s.Addr)
	s.Mode = getenv("MAILSORT_SERVER_MODE", s.Mode)
	s.MaxBatch = getenvInt("MAILSORT_MAX_BATCH", s.MaxBatch)
	s.ShutdownTimeout = getenvDuration("MAILSORT_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	b := &cfg.Batch
	b.Source = getenv("MAILSORT_BATCH_SOURCE", b.Source)
	b.Size = getenvInt("MAILSORT_BATCH_SIZE", b.Size)
	b.FlushWindow = getenvDuration("MAILSORT_BATCH_FLUSH_WINDOW", b.FlushWindow)
	b.Dedup = getenvBool("MAILSORT_BATCH_DEDUP", b.Dedup)
	b.SourceToken = getenv("MAILSORT_SOURCE_TOKEN", b.SourceToken)

	o := &cfg.Output
	o.Format = getenv("MAILSORT_OUTPUT", o.Format)
	o.Verbosity = getenv("MAILSORT_OUTPUT_VERBOSITY", o.Verbosity)
	o.Pretty = getenvBool("MAILSORT_OUTPUT_PRETTY", o.Pretty)
	o.File = getenv("MAILSORT_OUTPUT_FILE", o.File)
	o.MaxSizeMB = getenvInt("MAILSORT_OUTPUT_MAX_SIZE_MB", o.MaxSizeMB)
	o.WebhookURL = getenv("MAILSORT_WEBHOOK_URL", o.WebhookURL)

	cfg.Log.Level = getenv("MAILSORT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("MAILSORT_LOG_FORMAT", cfg.Log.Format)
}

// VectorizerFile returns the vectorizer artifact path.
func (e EngineConfig) VectorizerFile() string {
	if e.VectorizerPath != "" {
		return e.VectorizerPath
	}
	return filepath.Join(e.ModelDir, "tfidf_vectorizer.json")
}

// ClassifierFile returns the classifier artifact path. Without an explicit
// path the name follows the backend.
func (e EngineConfig) ClassifierFile() string {
	if e.ClassifierPath != "" {
		return e.ClassifierPath
	}
	if strings.EqualFold(e.Backend, "onnx") {
		return filepath.Join(e.ModelDir, "email_classifier.onnx")
	}
	return filepath.Join(e.ModelDir, "email_classifier.safetensors")
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Engine.Backend) {
	case "", "auto", "linear", "safetensors", "onnx":
	default:
		errs = append(errs, fmt.Errorf("engine.backend: unknown backend %q", c.Engine.Backend))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers: must be >= 0, got %d", c.Engine.Workers))
	}
	if c.Engine.Threads < 0 {
		errs = append(errs, fmt.Errorf("engine.threads: must be >= 0, got %d", c.Engine.Threads))
	}
	if c.Engine.PreviewLength < 0 {
		errs = append(errs, fmt.Errorf("engine.preview_length: must be >= 0, got %d", c.Engine.PreviewLength))
	}

	if c.Server.MaxBatch < 1 {
		errs = append(errs, fmt.Errorf("server.max_batch: must be >= 1, got %d", c.Server.MaxBatch))
	}
	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode: unknown mode %q", c.Server.Mode))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout: must be positive"))
	}

	switch c.Batch.Source {
	case "lines", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("batch.source: unknown source %q", c.Batch.Source))
	}
	if c.Batch.Size < 1 {
		errs = append(errs, fmt.Errorf("batch.size: must be >= 1, got %d", c.Batch.Size))
	}
	if c.Batch.FlushWindow < 0 {
		errs = append(errs, errors.New("batch.flush_window: must not be negative"))
	}

	switch c.Output.Format {
	case "json", "table":
	default:
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	switch c.Output.Verbosity {
	case "full", "minimal":
	default:
		errs = append(errs, fmt.Errorf("output.verbosity: unknown verbosity %q", c.Output.Verbosity))
	}
	if c.Output.WebhookURL != "" && c.Output.WebhookBatch < 1 {
		errs = append(errs, fmt.Errorf("output.webhook_batch: must be >= 1, got %d", c.Output.WebhookBatch))
	}
	if c.Output.MaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("output.max_size_mb: must be >= 0, got %d", c.Output.MaxSizeMB))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
