package output

import (
	"context"

	"github.com/hejijunhao/mailsort/internal/model"
)

// Output defines the interface for classified email destinations.
type Output interface {
	Write(ctx context.Context, c model.Classified) error
	Close() error
}
