package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
	"github.com/hejijunhao/droidlog/internal/output/outputtest"
)

// batchServer collects every posted envelope.
type batchServer struct {
	mu       sync.Mutex
	received []envelope
	ids      []string // BatchHeader per request
	status   int
}

func (b *batchServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var env envelope
	json.Unmarshal(body, &env)
	b.mu.Lock()
	b.received = append(b.received, env)
	b.ids = append(b.ids, r.Header.Get(BatchHeader))
	status := b.status
	b.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (b *batchServer) batches() [][]model.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]model.Record, len(b.received))
	for i, env := range b.received {
		out[i] = env.Records
	}
	return out
}

func TestBatchFlushAtBatchSize(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(3), WithFlushInterval(10*time.Second))
	for i := 0; i < 3; i++ {
		if err := out.Write(context.Background(), outputtest.Record("Tag", "batch")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got := bs.batches()
	if len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("batches = %v, want one batch of 3", got)
	}
	if got[0][0].Tag != "Tag" {
		t.Errorf("decoded tag = %q", got[0][0].Tag)
	}
}

func TestTimerFlushBeforeBatchSize(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(100*time.Millisecond))
	out.Write(context.Background(), outputtest.Record("Tag", "timer"))

	time.Sleep(300 * time.Millisecond)

	got := bs.batches()
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("expected 1 timer-triggered batch of 1, got %v", got)
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(10*time.Millisecond))
	if err := out.Write(context.Background(), outputtest.Record("Tag", "retry")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1))
	if err := out.Write(context.Background(), outputtest.Record("Tag", "client-error")); err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", attempts.Load())
	}
}

func TestCustomHeaders(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("X-Custom-Auth"))
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithHeaders(map[string]string{"X-Custom-Auth": "secret123"}))
	out.Write(context.Background(), outputtest.Record("Tag", "headers"))

	if gotAuth.Load() != "secret123" {
		t.Errorf("custom header = %v, want secret123", gotAuth.Load())
	}
}

func TestTimerFlushErrorCallbackInvoked(t *testing.T) {
	bs := &batchServer{status: http.StatusBadRequest}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	var errCount atomic.Int64
	out := New(srv.URL,
		WithBatchSize(100),
		WithFlushInterval(50*time.Millisecond),
		WithOnError(func(err error) { errCount.Add(1) }),
	)
	out.Write(context.Background(), outputtest.Record("Tag", "timer-error"))

	time.Sleep(300 * time.Millisecond)
	if errCount.Load() != 1 {
		t.Errorf("expected error callback called 1 time, got %d", errCount.Load())
	}
	out.Close()
}

func TestCloseFlushesRemaining(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(10*time.Second))
	out.Write(context.Background(), outputtest.Record("Tag", "close-flush"))
	out.Write(context.Background(), outputtest.Record("Tag", "close-flush"))
	out.Close()

	got := bs.batches()
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("expected 1 batch of 2 on Close, got %v", got)
	}
}

func TestVerbosityApplied(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithVerbosity(output.Minimal))
	r := outputtest.Record("Tag", strings.Join([]string{"1", "2", "3", "4"}, "\n"))
	out.Write(context.Background(), r)

	got := bs.batches()
	if len(got) != 1 {
		t.Fatalf("got %d batches", len(got))
	}
	if got[0][0].Message != "1\n2\n3\n... (+1 lines)" || got[0][0].RawText != "" {
		t.Errorf("posted record = %+v", got[0][0])
	}
}

func TestEnvelope(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(3))
	fatal := outputtest.Record("libc", "Fatal signal 6")
	fatal.Level = model.LevelFatal
	for _, r := range []model.Record{outputtest.Record("A", "one"), outputtest.Record("B", "two"), fatal} {
		if err := out.Write(context.Background(), r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if len(bs.received) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(bs.received))
	}
	env := bs.received[0]
	if env.Batch == "" || bs.ids[0] != env.Batch {
		t.Errorf("batch id %q, header %q", env.Batch, bs.ids[0])
	}
	if env.Counts["Info"] != 2 || env.Counts["Fatal"] != 1 {
		t.Errorf("counts = %v", env.Counts)
	}
	if env.SentAt.IsZero() {
		t.Error("sent_at missing")
	}
}

func TestRetryKeepsBatchID(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(BatchHeader))
		n := len(ids)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(10*time.Millisecond))
	if err := out.Write(context.Background(), outputtest.Record("Tag", "again")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(ids) != 2 || ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("batch ids across attempts = %v, want the same id twice", ids)
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Millisecond))
	if err := out.Write(context.Background(), outputtest.Record("Tag", "down")); err == nil {
		t.Error("expected error after exhausting retries")
	}
	if attempts.Load() != maxAttempts {
		t.Errorf("attempts = %d, want %d", attempts.Load(), maxAttempts)
	}
}

func TestMinLevel(t *testing.T) {
	bs := &batchServer{}
	srv := httptest.NewServer(bs)
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithMinLevel(model.LevelError))
	levels := []model.Level{model.LevelDebug, model.LevelWarn, model.LevelError, model.LevelFatal, model.LevelUnknown}
	for _, l := range levels {
		r := outputtest.Record("Tag", l.String())
		r.Level = l
		out.Write(context.Background(), r)
	}
	out.Close()

	got := bs.batches()
	if len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("batches = %v, want one batch of Error, Fatal, Unknown", got)
	}
	for i, want := range []string{"Error", "Fatal", "Unknown"} {
		if got[0][i].Message != want {
			t.Errorf("record %d = %q, want %q", i, got[0][i].Message, want)
		}
	}
}
