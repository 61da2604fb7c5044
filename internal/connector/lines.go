package connector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
)

// MaxLineSize is the longest line a connector passes on. The rest of a
// longer line is dropped.
const MaxLineSize = 1024 * 1024

// Scanner reads newline-terminated lines like bufio.Scanner, but a line
// longer than MaxLineSize is cut short instead of failing the whole read.
type Scanner struct {
	r         *bufio.Reader
	line      string
	err       error
	truncated int
}

// NewScanner returns a line scanner sized for logcat output.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next line. It returns false at EOF or on a read error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	var buf []byte
	cut := false
	for {
		chunk, err := s.r.ReadSlice('\n')
		if room := MaxLineSize - len(buf); len(chunk) > room {
			chunk, cut = chunk[:room], true
		}
		buf = append(buf, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			s.err = err
			if len(buf) == 0 {
				return false
			}
		}
		break
	}
	if cut {
		s.truncated++
	}
	buf = bytes.TrimSuffix(buf, []byte("\n"))
	buf = bytes.TrimSuffix(buf, []byte("\r"))
	s.line = string(buf)
	return true
}

// Text returns the line read by the last Scan, without its line ending.
func (s *Scanner) Text() string {
	return s.line
}

// Err returns the first read error. EOF is not an error.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Truncated returns how many lines were cut at MaxLineSize.
func (s *Scanner) Truncated() int {
	return s.truncated
}

// Line wraps text as a RawLine received now.
func Line(source, text string) model.RawLine {
	return model.RawLine{Text: text, Source: source, ReceivedAt: time.Now()}
}

// Send delivers line on ch unless ctx is done first.
func Send(ctx context.Context, ch chan<- model.RawLine, line model.RawLine) bool {
	select {
	case ch <- line:
		return true
	case <-ctx.Done():
		return false
	}
}

// Fail sends the terminal error line. It gives up if ctx is done.
func Fail(ctx context.Context, ch chan<- model.RawLine, source string, err error) {
	Send(ctx, ch, model.RawLine{Source: source, ReceivedAt: time.Now(), Err: err})
}

// Pump scans r line by line onto ch until EOF. It returns ctx.Err() when
// cancelled and the scanner error on a read failure.
func Pump(ctx context.Context, r io.Reader, source string, ch chan<- model.RawLine) error {
	scanner := NewScanner(r)
	for scanner.Scan() {
		if !Send(ctx, ch, Line(source, scanner.Text())) {
			return ctx.Err()
		}
	}
	warnTruncated(source, scanner)
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	return nil
}

func warnTruncated(source string, s *Scanner) {
	if n := s.Truncated(); n > 0 {
		slog.Warn("long lines truncated", "source", source, "lines", n, "max_bytes", MaxLineSize)
	}
}

// ReadLines reads r to the end. With limit > 0 only the last limit lines are
// kept, using a ring buffer so memory stays bounded.
func ReadLines(ctx context.Context, r io.Reader, source string, limit int) ([]model.RawLine, error) {
	scanner := NewScanner(r)
	if limit <= 0 {
		var lines []model.RawLine
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			lines = append(lines, Line(source, scanner.Text()))
		}
		warnTruncated(source, scanner)
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		return lines, nil
	}

	ring := make([]model.RawLine, limit)
	count := 0
	idx := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ring[idx] = Line(source, scanner.Text())
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	warnTruncated(source, scanner)
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	lines := make([]model.RawLine, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Texts extracts the text of each line.
func Texts(lines []model.RawLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
