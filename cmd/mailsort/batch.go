package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hejijunhao/mailsort/internal/config"
	"github.com/hejijunhao/mailsort/internal/output"
	"github.com/hejijunhao/mailsort/internal/output/async"
	"github.com/hejijunhao/mailsort/internal/output/file"
	"github.com/hejijunhao/mailsort/internal/output/multi"
	"github.com/hejijunhao/mailsort/internal/output/stdout"
	"github.com/hejijunhao/mailsort/internal/output/table"
	"github.com/hejijunhao/mailsort/internal/output/webhook"
	"github.com/hejijunhao/mailsort/internal/pipeline"
	"github.com/hejijunhao/mailsort/internal/source"
	"github.com/hejijunhao/mailsort/internal/source/remote"
)

func newBatchCmd() *cobra.Command {
	var (
		format    string
		outFormat string
		outFile   string
		hookURL   string
		size      int
		workers   int
		dedupe    bool
	)

	cmd := &cobra.Command{
		Use:   "batch [file|url]",
		Short: "Classify many emails from a file, URL or stdin",
		Long: `Classify emails read from a file, an http(s) URL, or stdin when no
argument or "-" is given. URLs are fetched with retries; $MAILSORT_SOURCE_TOKEN
is sent as a Bearer token when set.

Formats: "lines" reads one email per line (\n inside a line is expanded);
"jsonl" reads {"id": ..., "email": ...} records. Results are written as
NDJSON or a table, optionally also to a rotating file and a webhook.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("format") {
				cfg.Batch.Source = format
			}
			if cmd.Flags().Changed("output") {
				cfg.Output.Format = outFormat
			}
			if cmd.Flags().Changed("out-file") {
				cfg.Output.File = outFile
			}
			if cmd.Flags().Changed("webhook") {
				cfg.Output.WebhookURL = hookURL
			}
			if cmd.Flags().Changed("size") {
				cfg.Batch.Size = size
			}
			if cmd.Flags().Changed("dedup") {
				cfg.Batch.Dedup = dedupe
			}
			if cmd.Flags().Changed("workers") {
				cfg.Engine.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			in, err := openInput(cmd.Context(), cmd.InOrStdin(), args, cfg.Batch.SourceToken)
			if err != nil {
				return err
			}
			defer in.Close()

			// A recognizable remote format replaces the built-in default,
			// never an explicit choice.
			if in.format != "" && !cmd.Flags().Changed("format") &&
				cfg.Batch.Source == config.Default().Batch.Source {
				cfg.Batch.Source = in.format
			}

			ctor, err := source.Get(cfg.Batch.Source)
			if err != nil {
				return err
			}

			eng, err := loadEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer eng.Close()
			if !eng.Ready() {
				return fmt.Errorf("model not loaded: %w", eng.LoadErr())
			}

			out, err := buildOutput(cmd.OutOrStdout(), cfg.Output)
			if err != nil {
				return err
			}

			opts := []pipeline.Option{
				pipeline.WithBatchSize(cfg.Batch.Size),
				pipeline.WithFlushWindow(cfg.Batch.FlushWindow),
			}
			if cfg.Batch.Dedup {
				opts = append(opts, pipeline.WithDedup())
			}
			p := pipeline.New(ctor(in.name), eng, out, opts...)
			sum, runErr := p.Run(cmd.Context(), in)
			closeErr := p.Close()

			printSummary(cmd.ErrOrStderr(), sum)
			return errors.Join(runErr, closeErr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", "lines", "input format: "+fmt.Sprint(source.Formats()))
	f.StringVarP(&outFormat, "output", "o", "json", "output format: json or table")
	f.StringVar(&outFile, "out-file", "", "also append NDJSON results to this file (rotated by size)")
	f.StringVar(&hookURL, "webhook", "", "also POST results in batches to this URL")
	f.IntVar(&size, "size", 32, "emails per classification batch")
	f.IntVar(&workers, "workers", 4, "parallel predictions per batch")
	f.BoolVar(&dedupe, "dedup", false, "classify repeated email bodies once per batch")
	return cmd
}

// input is an opened batch source. format is set when the input itself
// reveals its format.
type input struct {
	io.ReadCloser
	name   string
	format string
}

func openInput(ctx context.Context, stdin io.Reader, args []string, token string) (*input, error) {
	if len(args) == 0 || args[0] == "-" {
		return &input{ReadCloser: io.NopCloser(stdin), name: "stdin"}, nil
	}
	if remote.IsURL(args[0]) {
		doc, err := remote.New(remote.WithToken(token)).Open(ctx, args[0])
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", args[0], err)
		}
		return &input{ReadCloser: doc.Body, name: args[0], format: doc.Format()}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	return &input{ReadCloser: f, name: args[0]}, nil
}

// buildOutput assembles the primary output plus the optional file and
// webhook mirrors. The webhook runs behind an async buffer so a slow
// endpoint never stalls classification.
func buildOutput(w io.Writer, oc config.OutputConfig) (output.Output, error) {
	verbosity, err := output.ParseVerbosity(oc.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	switch oc.Format {
	case "table":
		outs = append(outs, table.NewWriter(w))
	default:
		outs = append(outs, stdout.NewWriter(w, verbosity, oc.Pretty))
	}

	if oc.File != "" {
		fo, err := file.New(oc.File, verbosity,
			file.WithMaxSize(int64(oc.MaxSizeMB)<<20),
			file.WithMaxBackups(oc.MaxBackups),
		)
		if err != nil {
			return nil, err
		}
		outs = append(outs, fo)
	}

	if oc.WebhookURL != "" {
		hook := webhook.New(oc.WebhookURL,
			webhook.WithHeaders(oc.WebhookHeaders),
			webhook.WithBatchSize(oc.WebhookBatch),
			webhook.WithVerbosity(verbosity),
		)
		outs = append(outs, async.New(hook,
			async.WithDropOnFull(),
			async.WithOnError(func(err error) {
				slog.Warn("webhook delivery failed", "url", oc.WebhookURL, "error", err)
			}),
		))
	}

	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "\n%s %d emails in %s: %s, %s",
		color.New(color.Bold).Sprint("classified"),
		s.Total,
		s.Elapsed.Round(time.Millisecond),
		color.GreenString("%d ok", s.Succeeded),
		failedColor(s.Failed)("%d failed", s.Failed),
	)
	if s.Duplicates > 0 {
		fmt.Fprintf(w, ", %d duplicates", s.Duplicates)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, ", %s", color.YellowString("%d skipped", s.Skipped))
	}
	fmt.Fprintln(w)

	for _, name := range s.Categories() {
		fmt.Fprintf(w, "  %-10s %d\n", name, s.ByCategory[name])
	}
	for _, kind := range s.Failures() {
		fmt.Fprintf(w, "  %-10s %d\n", color.RedString(string(kind)), s.ByFailure[kind])
	}
}

func failedColor(n int) func(string, ...any) string {
	if n > 0 {
		return color.RedString
	}
	return fmt.Sprintf
}
