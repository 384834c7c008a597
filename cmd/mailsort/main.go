package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hejijunhao/mailsort/internal/config"
	"github.com/hejijunhao/mailsort/internal/engine"
	"github.com/hejijunhao/mailsort/internal/engine/classifier"
	"github.com/hejijunhao/mailsort/internal/logging"

	// Register source formats.
	_ "github.com/hejijunhao/mailsort/internal/source/jsonl"
	_ "github.com/hejijunhao/mailsort/internal/source/lines"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mailsort:", err)
		os.Exit(1)
	}
}

type contextKey string

const configKey contextKey = "config"

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
		modelDir   string
	)

	root := &cobra.Command{
		Use:           "mailsort",
		Short:         "Classify emails into business categories",
		Long:          "mailsort classifies email text as Urgent, Financial, HR or General using a TF-IDF vectorizer and a trained classifier.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if logFormat != "" {
				cfg.Log.Format = logFormat
			}
			if modelDir != "" {
				cfg.Engine.ModelDir = modelDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file (default $"+config.EnvConfigPath+")")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: json or text")
	pf.StringVar(&modelDir, "model-dir", "", "directory containing the model artifacts")

	root.AddCommand(
		newPredictCmd(),
		newBatchCmd(),
		newServeCmd(),
		newCategoriesCmd(),
		newCheckCmd(),
	)
	return root
}

// configFrom returns the configuration loaded by PersistentPreRunE.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// loadEngine builds an engine from the engine section of the config. The
// engine may come back unloaded; callers decide whether that is fatal.
func loadEngine(e config.EngineConfig) (*engine.Engine, error) {
	backend, err := classifier.ParseBackend(e.Backend)
	if err != nil {
		return nil, err
	}
	eng := engine.Load(
		engine.Paths{Vectorizer: e.VectorizerFile(), Classifier: e.ClassifierFile()},
		engine.WithClassifierOptions(classifier.Options{
			Backend:        backend,
			ONNXLibPath:    e.ONNXLibPath,
			IntraOpThreads: e.Threads,
		}),
		engine.WithWorkers(e.Workers),
		engine.WithPreviewLength(e.PreviewLength),
	)
	return eng, nil
}
