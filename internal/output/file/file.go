package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation. Compressed files are never rotated.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithFormat selects the record format. Default: output.FormatRaw, which
// writes the source lines back exactly as they were read.
func WithFormat(f output.Format) Option {
	return func(o *Output) { o.format = f }
}

// WithVerbosity applies to text and JSON formats. Default: output.Full.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithAppend keeps existing contents instead of truncating the file.
// Ignored for compressed files.
func WithAppend() Option {
	return func(o *Output) { o.append = true }
}

// Output writes records to a file with buffered I/O, optional compression
// chosen by extension (.gz, .zst) and optional size-based rotation.
type Output struct {
	mu        sync.Mutex
	path      string
	format    output.Format
	verbosity output.Verbosity
	maxSize   int64 // 0 = no rotation
	bufSize   int
	append    bool

	f       *os.File
	w       *bufio.Writer
	zw      io.WriteCloser // nil for plain files
	enc     *output.Encoder
	written int64
}

// New creates a file output writing to path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		path:      path,
		format:    output.FormatRaw,
		verbosity: output.Full,
		bufSize:   defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.compressed() {
		o.append = false
		o.maxSize = 0
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Save writes records to path in one go, e.g. to export a capture.
func Save(path string, records []model.Record, opts ...Option) error {
	o, err := New(path, opts...)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := o.Write(context.Background(), r); err != nil {
			o.Close()
			return err
		}
	}
	return o.Close()
}

func (o *Output) compressed() bool {
	return strings.HasSuffix(o.path, ".gz") || strings.HasSuffix(o.path, ".zst")
}

// Write encodes the record and appends it to the file.
func (o *Output) Write(_ context.Context, record model.Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.maxSize > 0 && o.written > 0 && o.written >= o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}
	if err := o.enc.Encode(record); err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes all buffers and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.closeWriters(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

func (o *Output) closeWriters() error {
	if o.zw != nil {
		if err := o.zw.Close(); err != nil {
			return err
		}
	}
	return o.w.Flush()
}

// openFile opens (or creates) the output file and builds the writer chain:
// encoder -> counter -> [compressor] -> bufio -> file.
func (o *Output) openFile() error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if o.append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(o.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, o.bufSize)
	o.written = info.Size()

	var sink io.Writer = o.w
	o.zw = nil
	switch {
	case strings.HasSuffix(o.path, ".gz"):
		o.zw = gzip.NewWriter(o.w)
		sink = o.zw
	case strings.HasSuffix(o.path, ".zst"):
		enc, err := zstd.NewWriter(o.w)
		if err != nil {
			f.Close()
			return fmt.Errorf("file output: zstd: %w", err)
		}
		o.zw = enc
		sink = enc
	}
	o.enc = output.NewEncoder(&counter{w: sink, n: &o.written}, o.format, o.verbosity, false)
	return nil
}

// rotate flushes, closes the current file, renames it to {path}.1
// (shifting existing rotated files), and opens a new file.
func (o *Output) rotate() error {
	if err := o.closeWriters(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}

	// Shift existing rotated files: .2 → .3, .1 → .2, current → .1
	for i := 9; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // may not exist
	}
	if err := os.Rename(o.path, o.path+".1"); err != nil {
		return err
	}

	o.written = 0
	return o.openFile()
}

// counter tracks uncompressed bytes written.
type counter struct {
	w io.Writer
	n *int64
}

func (c *counter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}
