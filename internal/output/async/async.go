// Package async puts a bounded queue in front of a slow output so that
// classification never waits on it.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

var (
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("async output: closed")
	// ErrDrainTimeout is reported by Close when queued results were
	// abandoned.
	ErrDrainTimeout = errors.New("async output: drain timed out")
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the queue capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithDrainTimeout bounds how long Close waits for queued results.
// Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// WithOnError sets the callback for failed writes to the wrapped output.
// Default: slog warning.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.onError = f }
}

// WithDropOnFull discards results instead of blocking when the queue is
// full. Dropped results are counted, see Dropped.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// Async forwards results to the wrapped output from a background goroutine.
// Errors from the wrapped output go to the error callback; the caller of
// Write only sees queueing errors.
type Async struct {
	inner        output.Output
	queue        chan model.Classified
	done         chan struct{}
	onError      func(error)
	bufSize      int
	drainTimeout time.Duration
	dropOnFull   bool

	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	dropped atomic.Int64
	once    sync.Once
}

// New wraps inner and starts forwarding immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		onError: func(err error) {
			slog.Warn("async output write failed", "error", err)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make(chan model.Classified, a.bufSize)
	a.done = make(chan struct{})
	go a.forward()
	return a
}

// Write queues c. When the queue is full it blocks until there is room or
// ctx is done, unless WithDropOnFull is set.
func (a *Async) Write(ctx context.Context, c model.Classified) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	if a.dropOnFull {
		select {
		case a.queue <- c:
		default:
			a.dropped.Add(1)
			slog.Warn("async output queue full, dropping result",
				"id", c.ID, "category", c.Category)
		}
		return nil
	}

	select {
	case a.queue <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many results WithDropOnFull discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Pending reports how many results are queued but not yet forwarded.
func (a *Async) Pending() int {
	return len(a.queue)
}

// Close stops accepting results, waits up to the drain timeout for the
// queue to empty, then closes the wrapped output. Later calls return nil.
func (a *Async) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()

		var drainErr error
		select {
		case <-a.done:
		case <-time.After(a.drainTimeout):
			pending := len(a.queue)
			slog.Warn("async output drain timed out", "pending", pending)
			drainErr = fmt.Errorf("%w with %d results pending", ErrDrainTimeout, pending)
		}
		err = errors.Join(drainErr, a.inner.Close())
	})
	return err
}

func (a *Async) forward() {
	defer close(a.done)
	for c := range a.queue {
		if err := a.inner.Write(context.Background(), c); err != nil {
			a.onError(err)
		}
	}
}
