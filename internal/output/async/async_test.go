package async

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hejijunhao/droidlog/internal/output/outputtest"
)

func TestRecordsFlowThroughInOrder(t *testing.T) {
	inner := &outputtest.Recorder{}
	a := New(inner, WithBufferSize(16))

	for i := 0; i < 10; i++ {
		if err := a.Write(context.Background(), outputtest.Record("Tag", fmt.Sprint(i))); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got := inner.Records()
	if len(got) != 10 {
		t.Fatalf("got %d records, want 10", len(got))
	}
	for i, r := range got {
		if r.Message != fmt.Sprint(i) {
			t.Fatalf("record %d = %q, out of order", i, r.Message)
		}
	}
	if !inner.Closed() {
		t.Error("inner output not closed")
	}
}

func TestBackpressureBlocks(t *testing.T) {
	inner := &outputtest.Recorder{Delay: 50 * time.Millisecond}
	a := New(inner, WithBufferSize(1))

	a.Write(context.Background(), outputtest.Record("Tag", "first"))

	done := make(chan struct{})
	go func() {
		a.Write(context.Background(), outputtest.Record("Tag", "second"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked indefinitely (expected eventual unblock via drain)")
	}
	a.Close()
}

func TestBlockedWriteHonoursContext(t *testing.T) {
	inner := &outputtest.Recorder{Delay: time.Second}
	a := New(inner, WithBufferSize(1), WithDrainTimeout(10*time.Millisecond))
	defer a.Close()

	a.Write(context.Background(), outputtest.Record("Tag", "in flight"))
	a.Write(context.Background(), outputtest.Record("Tag", "buffered"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Write(ctx, outputtest.Record("Tag", "blocked")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDropOnFull(t *testing.T) {
	inner := &outputtest.Recorder{Delay: 100 * time.Millisecond}
	a := New(inner, WithBufferSize(1), WithDropOnFull())

	for i := 0; i < 20; i++ {
		a.Write(context.Background(), outputtest.Record("Tag", "burst"))
	}
	a.Close()

	if inner.Len() == 20 || a.Dropped() == 0 {
		t.Error("expected some records to be dropped in drop-on-full mode")
	}
	if inner.Len() == 0 {
		t.Error("expected at least some records to be delivered")
	}
	if int64(inner.Len())+a.Dropped() != 20 {
		t.Errorf("delivered %d + dropped %d != 20", inner.Len(), a.Dropped())
	}
}

func TestErrorCallbackInvoked(t *testing.T) {
	inner := &outputtest.Recorder{Err: errors.New("write failed")}
	var errorCount atomic.Int64
	a := New(inner, WithBufferSize(16), WithOnError(func(err error) {
		errorCount.Add(1)
	}))

	for i := 0; i < 5; i++ {
		a.Write(context.Background(), outputtest.Record("Tag", "failing"))
	}
	a.Close()

	if errorCount.Load() != 5 {
		t.Errorf("error callback called %d times, want 5", errorCount.Load())
	}
}

func TestWriteAfterClose(t *testing.T) {
	a := New(&outputtest.Recorder{}, WithBufferSize(16))
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if err := a.Write(context.Background(), outputtest.Record("Tag", "late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("drain goroutine did not exit after Close")
	}
}
