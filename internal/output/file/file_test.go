package file

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hejijunhao/droidlog/internal/assembler"
	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
	"github.com/hejijunhao/droidlog/internal/testdata"
)

func testRecord(msg string) model.Record {
	return model.Record{
		Timestamp: time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Level:     model.LevelInfo,
		PID:       1,
		TID:       1,
		Tag:       "Test",
		Message:   msg,
		RawText:   "02-19 12:00:00.000     1     1 I Test: " + msg,
	}
}

func nonBlank(lines []string) string {
	var out []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n") + "\n"
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), output.DefaultFileName(time.Now()))
	records := assembler.Assemble(testdata.ThreadtimeLines())

	if err := Save(path, records); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), nonBlank(testdata.ThreadtimeLines()); got != want {
		t.Errorf("saved file differs from the non-blank input lines:\n%s\nwant\n%s", got, want)
	}
}

func TestCompressedOutputs(t *testing.T) {
	records := assembler.Assemble(testdata.ThreadtimeLines())
	want := nonBlank(testdata.ThreadtimeLines())

	tests := []struct {
		ext    string
		reader func(io.Reader) (io.Reader, error)
	}{
		{".gz", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{".zst", func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "capture.log"+tt.ext)
			if err := Save(path, records); err != nil {
				t.Fatalf("Save: %v", err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			r, err := tt.reader(f)
			if err != nil {
				t.Fatal(err)
			}
			data, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != want {
				t.Errorf("decompressed contents differ")
			}
		})
	}
}

func TestJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	out, err := New(path, WithFormat(output.FormatJSON))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		out.Write(context.Background(), testRecord("msg"))
	}
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %d invalid JSON: %v", i, err)
		}
	}
}

func TestBufferedNotVisibleUntilClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	out, err := New(path, WithBufSize(4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out.Write(context.Background(), testRecord("buffered"))

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Fatalf("expected empty file before flush, got %d bytes", len(data))
	}

	out.Close()
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "buffered") {
		t.Fatal("expected record after close")
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	line := testRecord("x").RawText + "\n"

	out, err := New(path, WithMaxSize(int64(len(line))*2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testRecord("x")); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	out.Close()

	for _, name := range []string{"out.log", "out.log.1", "out.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	data, _ := os.ReadFile(path)
	if string(data) != line {
		t.Errorf("current file = %q, want one line", data)
	}
}

func TestAppendAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Save(path, []model.Record{testRecord("a")}, WithAppend()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "existing\n") {
		t.Errorf("append lost existing contents: %q", data)
	}

	if err := Save(path, []model.Record{testRecord("b")}); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != testRecord("b").RawText+"\n" {
		t.Errorf("truncating save = %q", data)
	}
}
