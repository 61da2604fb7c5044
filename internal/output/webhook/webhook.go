// Package webhook posts records to an HTTP endpoint in batches, e.g. to feed
// crashes from a test device into a chat channel or an issue tracker.
//
// Each POST carries one JSON envelope:
//
//	{
//	  "batch":   "3f0c...",             // uuid, repeated in the BatchHeader
//	  "sent_at": "2026-01-15T10:00:01Z",
//	  "counts":  {"Error": 2, "Fatal": 1},
//	  "records": [ ... ]
//	}
//
// The batch id stays the same across retries so a receiver can drop
// duplicates.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
)

// BatchHeader carries the batch id on every POST.
const BatchHeader = "X-Droidlog-Batch"

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	maxAttempts          = 4
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets how many records are collected before a POST. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithFlushInterval bounds how long a partial batch waits. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithVerbosity controls how much of each message is posted. Default: output.Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithMinLevel drops records below l. Records of unknown level are always
// posted. Default: everything.
func WithMinLevel(l model.Level) Option {
	return func(o *Output) { o.minLevel = l }
}

// WithOnError sets the callback for failed timer-driven flushes.
// Default: a slog warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// envelope is the JSON body of one POST.
type envelope struct {
	Batch   string         `json:"batch"`
	SentAt  time.Time      `json:"sent_at"`
	Counts  map[string]int `json:"counts"`
	Records []model.Record `json:"records"`
}

func newEnvelope(records []model.Record) envelope {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Level.String()]++
	}
	return envelope{
		Batch:   uuid.NewString(),
		SentAt:  time.Now().UTC(),
		Counts:  counts,
		Records: records,
	}
}

// Output is an output.Output that batches records for an HTTP endpoint.
// A batch is sent when it is full, when flushInterval has passed since its
// first record, or on Close. Batches are sent one at a time, in order.
type Output struct {
	client        *http.Client
	url           string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	verbosity     output.Verbosity
	minLevel      model.Level
	errFunc       func(error)

	mu    sync.Mutex
	batch []model.Record
	timer *time.Timer
	gen   uint64 // identifies the open batch; stale timers compare and bail
}

// New creates a webhook output posting to url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		verbosity:     output.Standard,
		errFunc:       func(err error) { slog.Warn("webhook flush failed", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) wants(r model.Record) bool {
	return r.Level == model.LevelUnknown || r.Level >= o.minLevel
}

// Write adds record to the open batch and sends the batch once it is full.
func (o *Output) Write(ctx context.Context, record model.Record) error {
	if !o.wants(record) {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.batch = append(o.batch, output.FormatRecord(record, o.verbosity))
	switch {
	case len(o.batch) >= o.batchSize:
		return o.sendLocked(ctx)
	case len(o.batch) == 1:
		o.armLocked()
	}
	return nil
}

// Close sends whatever is left.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sendLocked(context.Background())
}

func (o *Output) armLocked() {
	gen := o.gen
	o.timer = time.AfterFunc(o.flushInterval, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if gen != o.gen {
			return
		}
		if err := o.sendLocked(context.Background()); err != nil {
			o.errFunc(err)
		}
	})
}

// sendLocked closes the open batch and posts it. Caller must hold o.mu.
func (o *Output) sendLocked(ctx context.Context) error {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.gen++
	if len(o.batch) == 0 {
		return nil
	}
	env := newEnvelope(o.batch)
	o.batch = nil

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("webhook: marshal batch: %w", err)
	}
	if err := o.post(ctx, env.Batch, body); err != nil {
		return fmt.Errorf("webhook: batch %s (%d records): %w", env.Batch, len(env.Records), err)
	}
	return nil
}

// post delivers body, retrying server errors and 429 with doubling delays.
func (o *Output) post(ctx context.Context, batchID string, body []byte) error {
	delay := o.backoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var status int
		status, err = o.do(ctx, batchID, body)
		if err == nil {
			return nil
		}
		if status != 0 && !retryable(status) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

// do sends one request. status is 0 when no response arrived.
func (o *Output) do(ctx context.Context, batchID string, body []byte) (status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(BatchHeader, batchID)
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}
