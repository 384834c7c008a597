// Package source reads emails for the batch pipeline from line-oriented
// input. Formats register themselves by name, the same way output sinks are
// chosen by configuration.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/hejijunhao/mailsort/internal/model"
)

// maxLineBytes bounds a single input line. Longer lines stop the stream
// with bufio.ErrTooLong.
const maxLineBytes = 4 << 20

// Source reads emails from an input stream.
type Source interface {
	// Stream reads r in the background and sends each email on the returned
	// channel, which is closed when reading stops.
	Stream(ctx context.Context, r io.Reader) <-chan model.Email

	// Err reports why the last stream stopped early. It is nil after a clean
	// EOF or cancellation and only meaningful once the channel is closed.
	Err() error

	// Skipped returns how many lines were dropped as malformed.
	Skipped() int64
}

// ParseFunc turns one non-blank line into an email. lineNo is 1-based.
type ParseFunc func(line string, lineNo int) (model.Email, error)

// LineSource implements Source on top of a ParseFunc. Blank lines are
// ignored and lines the ParseFunc rejects are logged and skipped.
type LineSource struct {
	name    string
	parse   ParseFunc
	err     error
	skipped atomic.Int64
}

// NewLineSource returns a LineSource whose emails are tagged with name.
func NewLineSource(name string, parse ParseFunc) *LineSource {
	return &LineSource{name: name, parse: parse}
}

func (s *LineSource) Stream(ctx context.Context, r io.Reader) <-chan model.Email {
	ch := make(chan model.Email, 64)
	s.err = nil

	go func() {
		defer close(ch)

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := strings.TrimRight(sc.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}

			email, err := s.parse(line, lineNo)
			if err != nil {
				s.skipped.Add(1)
				slog.Warn("skipping malformed input line",
					"source", s.name, "line", lineNo, "error", err)
				continue
			}
			if email.ID == "" {
				email.ID = fmt.Sprint(lineNo)
			}
			email.Source = s.name

			select {
			case ch <- email:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			s.err = fmt.Errorf("source: %s line %d: %w", s.name, lineNo+1, err)
		}
	}()

	return ch
}

func (s *LineSource) Err() error { return s.err }

func (s *LineSource) Skipped() int64 { return s.skipped.Load() }
