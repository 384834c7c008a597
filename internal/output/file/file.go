// Package file appends classified emails to an NDJSON file with size-based
// rotation.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
)

const (
	defaultBufSize    = 64 * 1024
	defaultMaxBackups = 3
)

// Option configures a file Output.
type Option func(*rotatingFile)

// WithMaxSize sets the size in bytes past which the file is rotated.
// 0 (default) never rotates.
func WithMaxSize(bytes int64) Option {
	return func(r *rotatingFile) { r.maxSize = bytes }
}

// WithMaxBackups sets how many rotated files ({path}.1 … {path}.N) are kept.
// Default: 3.
func WithMaxBackups(n int) Option {
	return func(r *rotatingFile) { r.maxBackups = n }
}

// WithBufSize sets the write buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(r *rotatingFile) { r.bufSize = bytes }
}

// Output encodes one result per line into a rotating file.
type Output struct {
	mu        sync.Mutex
	sink      *rotatingFile
	enc       *json.Encoder
	verbosity output.Verbosity
}

// New opens path for appending, creating it if needed. The parent
// directory must exist.
func New(path string, verbosity output.Verbosity, opts ...Option) (*Output, error) {
	sink := &rotatingFile{
		path:       path,
		bufSize:    defaultBufSize,
		maxBackups: defaultMaxBackups,
	}
	for _, opt := range opts {
		opt(sink)
	}
	sink.maxBackups = max(sink.maxBackups, 1)

	if err := sink.open(); err != nil {
		return nil, err
	}

	enc := json.NewEncoder(sink)
	enc.SetEscapeHTML(false)
	return &Output{sink: sink, enc: enc, verbosity: verbosity}, nil
}

// Write appends c as one JSON line.
func (o *Output) Write(_ context.Context, c model.Classified) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.enc.Encode(output.Format(c, o.verbosity)); err != nil {
		return fmt.Errorf("file output: %w", err)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sink.Close()
}

// rotatingFile is a buffered append-only file that moves itself aside to
// {path}.1 once the next write would exceed maxSize. Each Write call is
// kept whole in one file, so encoded lines never straddle a rotation.
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int
	bufSize    int

	f    *os.File
	w    *bufio.Writer
	size int64
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	if r.maxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate: %w", err)
		}
	}
	n, err := r.w.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	if flushErr != nil {
		return fmt.Errorf("file output: flush: %w", flushErr)
	}
	return closeErr
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", r.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", r.path, err)
	}
	r.f = f
	r.w = bufio.NewWriterSize(f, r.bufSize)
	r.size = info.Size()
	return nil
}

// rotate shifts {path}.i to {path}.i+1, dropping the oldest backup, then
// moves the live file to {path}.1 and reopens path empty.
func (r *rotatingFile) rotate() error {
	if err := r.w.Flush(); err != nil {
		return err
	}
	if err := r.f.Close(); err != nil {
		return err
	}

	os.Remove(r.backup(r.maxBackups))
	for i := r.maxBackups - 1; i >= 1; i-- {
		os.Rename(r.backup(i), r.backup(i+1)) // gaps are fine
	}
	if err := os.Rename(r.path, r.backup(1)); err != nil {
		return err
	}
	return r.open()
}

func (r *rotatingFile) backup(i int) string {
	return fmt.Sprintf("%s.%d", r.path, i)
}
