// Package multi copies every classified email to several outputs.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/output"
)

// Multi writes each result to all wrapped outputs in order. A failing
// output does not stop delivery to the others; its error is reported with
// its position so the caller can tell the destinations apart.
type Multi struct {
	outputs []output.Output
}

// New returns a Multi over outputs. Nil entries are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len reports how many outputs are wrapped.
func (m *Multi) Len() int { return len(m.outputs) }

func (m *Multi) Write(ctx context.Context, c model.Classified) error {
	return m.each(func(o output.Output) error { return o.Write(ctx, c) })
}

// Close closes every output, even after failures.
func (m *Multi) Close() error {
	return m.each(output.Output.Close)
}

func (m *Multi) each(f func(output.Output) error) error {
	var errs []error
	for i, o := range m.outputs {
		if err := f(o); err != nil {
			errs = append(errs, fmt.Errorf("output %d (%T): %w", i, o, err))
		}
	}
	return errors.Join(errs...)
}
