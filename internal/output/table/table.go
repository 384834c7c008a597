// Package table renders classification results as a terminal table. Rows are
// buffered and the table is drawn once on Close, since column widths depend
// on every row.
package table

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/hejijunhao/mailsort/internal/model"
)

// lowConfidence marks predictions whose winning score is at or below this
// percentage.
const lowConfidence = 50.0

// Output buffers results and renders them as a table on Close.
type Output struct {
	w    io.Writer
	mu   sync.Mutex
	rows [][]string
}

// New creates a table output that renders to stdout.
func New() *Output {
	return NewWriter(os.Stdout)
}

// NewWriter creates a table output that renders to w.
func NewWriter(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Write(_ context.Context, c model.Classified) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rows = append(o.rows, row(len(o.rows)+1, c))
	return nil
}

// Close renders every buffered row. An empty table renders nothing.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.rows) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(o.w)
	table.SetHeader([]string{"#", "ID", "Category", "Confidence", "Preview"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(o.rows)
	table.Render()

	o.rows = nil
	return nil
}

func row(n int, c model.Classified) []string {
	id := c.ID
	if id == "" {
		id = "-"
	}
	if !c.Success {
		return []string{fmt.Sprint(n), id, color.RedString("ERROR"), "-", c.Error}
	}

	conf := fmt.Sprintf("%.2f%%", c.Confidence)
	if c.Confidence <= lowConfidence {
		conf = color.YellowString(conf)
	} else {
		conf = color.GreenString(conf)
	}
	return []string{fmt.Sprint(n), id, c.Category, conf, c.Preprocessed}
}
