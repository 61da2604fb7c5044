package file

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/testdata"
)

func writePlain(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(testdata.Threadtime()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeGzip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.log.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(testdata.Threadtime())); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

func writeZstd(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.log.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write([]byte(testdata.Threadtime())); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return path
}

func TestQueryFormats(t *testing.T) {
	want := testdata.ThreadtimeLines()
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"plain", func(t *testing.T) string { return writePlain(t, "capture.log") }},
		{"gzip", writeGzip},
		{"zstd", writeZstd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Connector{}
			lines, err := c.Query(context.Background(), connector.ConnectorConfig{Path: tt.path(t)}, connector.QueryParams{})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if got := connector.Texts(lines); !reflect.DeepEqual(got, want) {
				t.Errorf("got %d lines, want %d", len(got), len(want))
			}
		})
	}
}

func TestQueryLimit(t *testing.T) {
	c := &Connector{}
	lines, err := c.Query(context.Background(), connector.ConnectorConfig{Path: writePlain(t, "capture.log")}, connector.QueryParams{Limit: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	all := testdata.ThreadtimeLines()
	if got, want := connector.Texts(lines), all[len(all)-3:]; !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStream(t *testing.T) {
	c := &Connector{}
	ch, err := c.Stream(context.Background(), connector.ConnectorConfig{Path: writeGzip(t)})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var got []string
	for l := range ch {
		if l.Err != nil {
			t.Fatalf("unexpected error line: %v", l.Err)
		}
		if l.Source != "file" {
			t.Fatalf("Source = %q", l.Source)
		}
		got = append(got, l.Text)
	}
	if want := testdata.ThreadtimeLines(); !reflect.DeepEqual(got, want) {
		t.Errorf("streamed %d lines, want %d", len(got), len(want))
	}
}

func TestMissingFile(t *testing.T) {
	c := &Connector{}
	cfg := connector.ConnectorConfig{Path: filepath.Join(t.TempDir(), "nope.log")}
	if _, err := c.Query(context.Background(), cfg, connector.QueryParams{}); err == nil {
		t.Error("Query on a missing file should fail")
	}
	if _, err := c.Stream(context.Background(), cfg); err == nil {
		t.Error("Stream on a missing file should fail")
	}
	if _, err := c.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err == nil {
		t.Error("Query without a path should fail")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := connector.Get("file"); err != nil {
		t.Fatalf("file connector not registered: %v", err)
	}
}
