package output

import (
	"context"

	"github.com/hejijunhao/droidlog/internal/model"
)

// Output defines the interface for record destinations.
type Output interface {
	Write(ctx context.Context, record model.Record) error
	Close() error
}
