package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hejijunhao/droidlog/internal/assembler"
	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/output"
)

const defaultBufferSize = 256

// Pipeline connects a connector, the record assembler, a filter engine and
// an output.
type Pipeline struct {
	connector connector.Connector
	filter    *filter.Engine
	output    output.Output
	asmOpts   []assembler.Option
	bufSize   int
	packages  bool
	tap       output.Output
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAssemblerOptions passes options to the assembler of every session.
func WithAssemblerOptions(opts ...assembler.Option) Option {
	return func(p *Pipeline) { p.asmOpts = append(p.asmOpts, opts...) }
}

// WithBufferSize sets the capacity of the channel between the assembler and
// the output. Default: 256.
func WithBufferSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithPackageTracking learns pid to package mappings from ActivityManager
// process-start records and stores them in the filter engine. Default: on.
func WithPackageTracking(on bool) Option {
	return func(p *Pipeline) { p.packages = on }
}

// WithTap sends every assembled record to out before filtering, e.g. a
// store that keeps the unfiltered history.
func WithTap(out output.Output) Option {
	return func(p *Pipeline) { p.tap = out }
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *filter.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector: conn,
		filter:    eng,
		output:    out,
		bufSize:   defaultBufferSize,
		packages:  true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream runs a new session in streaming mode. Blocks until the source ends,
// fails, or ctx is cancelled.
func (p *Pipeline) Stream(ctx context.Context, cfg connector.ConnectorConfig) error {
	return p.NewSession().Stream(ctx, cfg)
}

// Query runs a new session in one-shot query mode.
func (p *Pipeline) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) error {
	return p.NewSession().Query(ctx, cfg, params)
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}

// Session is one run of a pipeline. Each session has its own assembler, so
// nothing pending from an earlier run can leak into it.
type Session struct {
	ID      string
	Started time.Time

	p        *Pipeline
	lines    atomic.Int64
	records  atomic.Int64
	filtered atomic.Int64
	written  atomic.Int64
}

// Stats counts what a session has processed so far.
type Stats struct {
	Lines    int64 // raw lines received
	Records  int64 // records assembled
	Filtered int64 // records rejected by the filter
	Written  int64 // records delivered to the output
}

// NewSession prepares a session without starting it.
func (p *Pipeline) NewSession() *Session {
	return &Session{ID: uuid.NewString(), Started: time.Now(), p: p}
}

// Stats returns the session's counters.
func (s *Session) Stats() Stats {
	return Stats{
		Lines:    s.lines.Load(),
		Records:  s.records.Load(),
		Filtered: s.filtered.Load(),
		Written:  s.written.Load(),
	}
}

// Stream feeds the connector's lines through an assembler on one goroutine
// and drains assembled records through the filter into the output on
// another. Cancelling ctx flushes the pending record; everything assembled
// up to that point is still written before Stream returns ctx.Err().
//
// A source failure discards the pending record and is returned wrapped as
// "pipeline source"; an output failure as "pipeline output".
func (s *Session) Stream(ctx context.Context, cfg connector.ConnectorConfig) error {
	// The connector runs under the group context so a failed output also
	// stops the source.
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(sctx)
	lines, err := s.p.connector.Stream(gctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline stream: %w", err)
	}
	slog.Debug("session started", "session", s.ID, "provider", cfg.Provider)

	records := make(chan model.Record, s.p.bufSize)
	drainFailed := make(chan struct{})
	asm := assembler.New(func(r model.Record) {
		s.records.Add(1)
		select {
		case records <- r:
		case <-drainFailed:
		}
	}, s.p.asmOpts...)

	g.Go(func() error {
		// The assembler is stopped on every path out of feed, so no emit can
		// race the close.
		defer close(records)
		return s.feed(gctx, lines, asm)
	})
	g.Go(func() error {
		err := s.drain(ctx, records)
		if err != nil {
			close(drainFailed)
		}
		return err
	})

	err = g.Wait()
	st := s.Stats()
	slog.Debug("session ended", "session", s.ID, "lines", st.Lines, "records", st.Records, "written", st.Written, "error", err)
	return err
}

func (s *Session) feed(ctx context.Context, lines <-chan model.RawLine, asm *assembler.Assembler) error {
	for {
		select {
		case <-ctx.Done():
			asm.Stop()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				// Connectors close on cancellation too; report that as such.
				asm.Close()
				return ctx.Err()
			}
			if line.Err != nil {
				asm.Abort()
				return fmt.Errorf("pipeline source: %w", line.Err)
			}
			s.lines.Add(1)
			asm.Push(line.Text)
		}
	}
}

// drain writes until records is closed. Writes are not cancelled with ctx
// so the records flushed by a stop still reach the output.
func (s *Session) drain(ctx context.Context, records <-chan model.Record) error {
	wctx := context.WithoutCancel(ctx)
	for r := range records {
		if err := s.deliver(wctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) deliver(ctx context.Context, r model.Record) error {
	if s.p.packages {
		observePackage(s.p.filter, r)
	}
	if s.p.tap != nil {
		if err := s.p.tap.Write(ctx, r); err != nil {
			return fmt.Errorf("pipeline tap: %w", err)
		}
	}
	if !s.p.filter.Matches(r) {
		s.filtered.Add(1)
		return nil
	}
	if err := s.p.output.Write(ctx, r); err != nil {
		return fmt.Errorf("pipeline output: %w", err)
	}
	s.written.Add(1)
	return nil
}

// Query reads the connector's current contents, assembles them in one pass
// and writes the records that pass the filter. Written records carry their
// position among all assembled records as OriginalIndex.
func (s *Session) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) error {
	raws, err := s.p.connector.Query(ctx, cfg, params)
	if err != nil {
		return fmt.Errorf("pipeline query: %w", err)
	}
	s.lines.Add(int64(len(raws)))

	all := assembler.Assemble(connector.Texts(raws), s.p.asmOpts...)
	s.records.Add(int64(len(all)))
	for _, r := range all {
		if s.p.packages {
			observePackage(s.p.filter, r)
		}
		if s.p.tap != nil {
			if err := s.p.tap.Write(ctx, r); err != nil {
				return fmt.Errorf("pipeline tap: %w", err)
			}
		}
	}

	passed := s.p.filter.Filter(all)
	s.filtered.Add(int64(len(all) - len(passed)))
	for _, r := range passed {
		if err := s.p.output.Write(ctx, r); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
		s.written.Add(1)
	}
	return nil
}
