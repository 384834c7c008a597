package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/hejijunhao/mailsort/internal/engine/dedup"
	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
	"github.com/hejijunhao/mailsort/internal/source"
)

const (
	defaultBatchSize   = 32
	defaultFlushWindow = time.Second
)

// Predictor classifies a batch of email bodies. Result i must belong to
// texts[i].
type Predictor interface {
	PredictBatch(texts []string) []model.PredictionResult
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many emails are classified per engine call.
// Default: 32.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushWindow bounds how long a partial batch waits for more input
// before it is classified. Zero waits until the batch fills or input ends.
// Default: 1s.
func WithFlushWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.window = d }
}

// WithDedup classifies each distinct email body once per batch and copies
// the result to its repeats.
func WithDedup() Option {
	return func(p *Pipeline) { p.dedup = true }
}

// Summary tallies one pipeline run.
type Summary struct {
	Total      int                       `json:"total"`
	Succeeded  int                       `json:"succeeded"`
	Failed     int                       `json:"failed"`
	Skipped    int64                     `json:"skipped"`
	Duplicates int                       `json:"duplicates,omitempty"`
	ByCategory map[string]int            `json:"by_category"`
	ByFailure  map[model.FailureKind]int `json:"by_failure,omitempty"`
	Elapsed    time.Duration             `json:"elapsed"`
}

// Categories returns the predicted categories in descending count order,
// ties broken by name.
func (s Summary) Categories() []string {
	names := make([]string, 0, len(s.ByCategory))
	for name := range s.ByCategory {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.ByCategory[names[i]], s.ByCategory[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

// Failures returns the failure kinds seen, in the same order as Categories.
func (s Summary) Failures() []model.FailureKind {
	kinds := make([]model.FailureKind, 0, len(s.ByFailure))
	for k := range s.ByFailure {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		a, b := s.ByFailure[kinds[i]], s.ByFailure[kinds[j]]
		if a != b {
			return a > b
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

// Pipeline connects a source, predictor, and output into a batch
// classification run.
type Pipeline struct {
	source    source.Source
	predictor Predictor
	output    output.Output
	batchSize int
	window    time.Duration
	dedup     bool
	summary   Summary
}

// New creates a Pipeline from the given components.
func New(src source.Source, pred Predictor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:    src,
		predictor: pred,
		output:    out,
		batchSize: defaultBatchSize,
		window:    defaultFlushWindow,
		summary: Summary{
			ByCategory: make(map[string]int),
			ByFailure:  make(map[model.FailureKind]int),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run reads every email from r, classifies them in batches, and writes one
// result per email in input order. It blocks until input ends or ctx is
// cancelled; emails already buffered are still classified on cancellation.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (Summary, error) {
	start := time.Now()
	finish := func(err error) (Summary, error) {
		p.summary.Elapsed += time.Since(start)
		p.summary.Skipped = p.source.Skipped()
		return p.Summary(), err
	}

	ch := p.source.Stream(ctx, r)
	buf := newEmailBuffer(p.window, p.batchSize)

	for {
		select {
		case <-ctx.Done():
			if err := p.flush(context.WithoutCancel(ctx), buf); err != nil {
				return finish(err)
			}
			return finish(ctx.Err())

		case <-buf.flushCh():
			if err := p.flush(ctx, buf); err != nil {
				return finish(err)
			}

		case email, ok := <-ch:
			if !ok {
				if err := p.flush(ctx, buf); err != nil {
					return finish(err)
				}
				if err := p.source.Err(); err != nil {
					return finish(fmt.Errorf("pipeline source: %w", err))
				}
				return finish(nil)
			}
			if buf.add(email) {
				if err := p.flush(ctx, buf); err != nil {
					return finish(err)
				}
			}
		}
	}
}

// flush classifies the buffered emails and writes their results.
func (p *Pipeline) flush(ctx context.Context, buf *emailBuffer) error {
	emails := buf.take()
	if len(emails) == 0 {
		return nil
	}

	texts := make([]string, len(emails))
	for i, e := range emails {
		texts[i] = e.Text
	}
	results, err := p.predict(texts)
	if err != nil {
		return err
	}
	if len(results) != len(emails) {
		return fmt.Errorf("pipeline: predictor returned %d results for %d emails", len(results), len(emails))
	}

	for i, res := range results {
		p.record(res)
		if !res.Success {
			slog.Debug("email not classified",
				"id", emails[i].ID, "source", emails[i].Source, "kind", res.Kind, "error", res.Error)
		}
		if err := p.output.Write(ctx, model.Classified{ID: emails[i].ID, PredictionResult: res}); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) predict(texts []string) ([]model.PredictionResult, error) {
	if !p.dedup {
		return p.predictor.PredictBatch(texts), nil
	}
	b := dedup.Collapse(texts)
	unique := p.predictor.PredictBatch(b.Unique)
	if len(unique) != len(b.Unique) {
		return nil, fmt.Errorf("pipeline: predictor returned %d results for %d distinct emails", len(unique), len(b.Unique))
	}
	p.summary.Duplicates += b.Duplicates()
	return dedup.Expand(b, unique), nil
}

func (p *Pipeline) record(res model.PredictionResult) {
	p.summary.Total++
	if res.Success {
		p.summary.Succeeded++
		p.summary.ByCategory[res.Category]++
		return
	}
	p.summary.Failed++
	p.summary.ByFailure[res.Kind]++
}

// Summary returns a copy of the tallies so far.
func (p *Pipeline) Summary() Summary {
	s := p.summary
	s.ByCategory = make(map[string]int, len(p.summary.ByCategory))
	for k, v := range p.summary.ByCategory {
		s.ByCategory[k] = v
	}
	s.ByFailure = make(map[model.FailureKind]int, len(p.summary.ByFailure))
	for k, v := range p.summary.ByFailure {
		s.ByFailure[k] = v
	}
	return s
}

// Close shuts down the output and logs the run summary.
func (p *Pipeline) Close() error {
	s := p.summary
	slog.Info("pipeline finished",
		"total", s.Total,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"duplicates", s.Duplicates,
		"elapsed", s.Elapsed,
	)
	return p.output.Close()
}
