// Package file reads a saved logcat capture from disk. Files ending in .gz
// or .zst are decompressed transparently.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/model"
)

const name = "file"

func init() {
	connector.Register(name, func() connector.Connector {
		return &Connector{}
	})
}

// Connector implements connector.Connector for files on disk.
type Connector struct{}

// Open opens path for reading, wrapping it in a decompressor chosen by
// extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("file connector: gzip %s: %w", path, err)
		}
		return &stacked{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("file connector: zstd %s: %w", path, err)
		}
		return &stacked{Reader: dec, closers: []io.Closer{zstdCloser{dec}, f}}, nil
	default:
		return f, nil
	}
}

type stacked struct {
	io.Reader
	closers []io.Closer
}

func (s *stacked) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// zstd.Decoder.Close has no error result.
type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file connector: missing path")
	}
	r, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	lines, err := connector.ReadLines(ctx, r, name, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	return lines, nil
}

// Stream sends every line of the file and closes the channel at EOF.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("file connector: missing path")
	}
	r, err := Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	ch := make(chan model.RawLine, 256)
	go func() {
		defer close(ch)
		defer r.Close()
		if err := connector.Pump(ctx, r, name, ch); err != nil && ctx.Err() == nil {
			connector.Fail(ctx, ch, name, fmt.Errorf("file connector: %w", err))
		}
	}()
	return ch, nil
}
