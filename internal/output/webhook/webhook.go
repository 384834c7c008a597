// Package webhook mirrors classified emails to an HTTP endpoint in batches.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxRetries           = 3

	// BatchHeader carries the batch id so receivers can drop redeliveries.
	BatchHeader = "X-Mailsort-Batch"
)

// Payload is the JSON body of every POST.
type Payload struct {
	BatchID string             `json:"batch_id"`
	Count   int                `json:"count"`
	Results []model.Classified `json:"results"`
}

// StatusError is returned when the endpoint answers outside 2xx.
type StatusError struct {
	BatchID    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: batch %s: HTTP %d", e.BatchID, e.StatusCode)
}

// retryable reports whether a later attempt may succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets how many results are posted together. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval bounds how long a partial batch waits. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithVerbosity sets which result fields are posted. Default: Full.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithOnError sets the callback for failed deliveries that no caller can
// observe, i.e. those started by the flush timer. Default: slog warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.onError = f }
}

// Output collects results into batches and POSTs each batch as a Payload.
// A batch is sent when it is full, when the flush interval passes after its
// first result, or on Close. 429 and 5xx answers are retried with the same
// batch id.
type Output struct {
	client        *http.Client
	url           string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	verbosity     output.Verbosity
	onError       func(error)

	mu    sync.Mutex
	batch []model.Classified
	timer *time.Timer
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		onError: func(err error) {
			slog.Warn("webhook delivery failed", "error", err)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write queues c. A full batch is delivered before Write returns, so its
// error reaches the caller.
func (o *Output) Write(ctx context.Context, c model.Classified) error {
	o.mu.Lock()
	o.batch = append(o.batch, output.Format(c, o.verbosity))
	if len(o.batch) < o.batchSize {
		if len(o.batch) == 1 {
			o.timer = time.AfterFunc(o.flushInterval, o.flushOnTimer)
		}
		o.mu.Unlock()
		return nil
	}
	p := o.takeLocked()
	o.mu.Unlock()

	return o.deliver(ctx, p)
}

// Close delivers whatever is still queued.
func (o *Output) Close() error {
	o.mu.Lock()
	p := o.takeLocked()
	o.mu.Unlock()

	if p.Count == 0 {
		return nil
	}
	return o.deliver(context.Background(), p)
}

func (o *Output) flushOnTimer() {
	o.mu.Lock()
	p := o.takeLocked()
	o.mu.Unlock()

	if p.Count == 0 {
		return
	}
	if err := o.deliver(context.Background(), p); err != nil {
		o.onError(err)
	}
}

// takeLocked detaches the queued results as a new Payload and disarms the
// timer. Caller must hold o.mu.
func (o *Output) takeLocked() Payload {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if len(o.batch) == 0 {
		return Payload{}
	}
	p := Payload{BatchID: uuid.NewString(), Count: len(o.batch), Results: o.batch}
	o.batch = nil
	return p
}

// deliver POSTs p, retrying retryable statuses with exponential backoff.
// Waits between attempts end early when ctx is done.
func (o *Output) deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(o.backoff << (attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("webhook: batch %s: %w", p.BatchID, ctx.Err())
			case <-t.C:
			}
		}

		err := o.post(ctx, p.BatchID, body)
		if err == nil {
			return nil
		}
		lastErr = err

		if se, ok := err.(*StatusError); !ok || !se.retryable() {
			return err
		}
	}
	return lastErr
}

func (o *Output) post(ctx context.Context, batchID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(BatchHeader, batchID)
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{BatchID: batchID, StatusCode: resp.StatusCode}
	}
	return nil
}
