// Package lines reads one email per input line. Literal "\n" sequences
// inside a line are expanded so multi-line bodies survive the format.
package lines

import (
	"strings"

	"github.com/hejijunhao/mailsort/internal/model"
	"github.com/hejijunhao/mailsort/internal/source"
)

func init() {
	source.Register("lines", New)
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t")

// New returns a plain-text source.
func New(name string) source.Source {
	return source.NewLineSource(name, parse)
}

func parse(line string, _ int) (model.Email, error) {
	return model.Email{Text: unescaper.Replace(line)}, nil
}
