// Package outputtest provides an in-memory output.Output for tests.
package outputtest

import (
	"context"
	"sync"
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
)

// Recorder keeps every record written to it.
type Recorder struct {
	Err      error         // if set, Write returns this
	CloseErr error         // if set, Close returns this
	Delay    time.Duration // if >0, Write sleeps first

	mu      sync.Mutex
	records []model.Record
	closed  bool
	written chan struct{}
}

func (r *Recorder) Write(_ context.Context, record model.Record) error {
	if r.Delay > 0 {
		time.Sleep(r.Delay)
	}
	r.mu.Lock()
	r.records = append(r.records, record)
	ch := r.signal()
	r.mu.Unlock()
	select {
	case ch <- struct{}{}:
	default:
	}
	return r.Err
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.CloseErr
}

func (r *Recorder) signal() chan struct{} {
	if r.written == nil {
		r.written = make(chan struct{}, 1)
	}
	return r.written
}

// Records returns a copy of everything written so far.
func (r *Recorder) Records() []model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len returns the number of records written.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// WaitFor blocks until at least n records were written or timeout passes,
// and reports whether the count was reached.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		r.mu.Lock()
		got := len(r.records)
		ch := r.signal()
		r.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-ch:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return false
		}
	}
}

// Record builds a minimal record for tests.
func Record(tag, message string) model.Record {
	return model.Record{
		Timestamp:     time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
		Level:         model.LevelInfo,
		PID:           1,
		TID:           1,
		Tag:           tag,
		Message:       message,
		RawText:       "02-19 12:00:00.000     1     1 I " + tag + ": " + message,
		OriginalIndex: model.NoIndex,
	}
}
