package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
)

// Output writes records to stdout as text, raw lines or NDJSON.
type Output struct {
	mu  sync.Mutex
	enc *output.Encoder
}

// Option configures a stdout Output.
type Option func(*options)

type options struct {
	w     io.Writer
	color bool
}

// WithWriter replaces os.Stdout, mainly for tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.w = w }
}

// WithColor styles text records by level when stdout is a terminal.
func WithColor(on bool) Option {
	return func(o *options) { o.color = on }
}

// New creates a stdout Output.
func New(format output.Format, verbosity output.Verbosity, opts ...Option) *Output {
	o := options{w: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Output{enc: output.NewEncoder(o.w, format, verbosity, o.color)}
}

func (o *Output) Write(_ context.Context, record model.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.enc.Encode(record); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
