package droidlog

import (
	"context"
	"fmt"
	"io"

	"github.com/hejijunhao/droidlog/internal/assembler"
	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/connector/stdin"
	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/parser"
	"github.com/hejijunhao/droidlog/internal/pipeline"
)

// Droidlog assembles logcat lines into records and filters them.
// Safe for concurrent use.
type Droidlog struct {
	engine  *filter.Engine
	asmOpts []assembler.Option
}

// New creates a Droidlog with the given options.
func New(opts ...Option) *Droidlog {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	eng := filter.NewEngine()
	cfg := eng.Config()
	for _, name := range o.hide {
		if l, err := model.ParseLevelName(name); err == nil {
			cfg.ShowVerbose = cfg.ShowVerbose && l != model.LevelVerbose
			cfg.ShowDebug = cfg.ShowDebug && l != model.LevelDebug
			cfg.ShowInfo = cfg.ShowInfo && l != model.LevelInfo
			cfg.ShowWarn = cfg.ShowWarn && l != model.LevelWarn
			cfg.ShowError = cfg.ShowError && l != model.LevelError
			cfg.ShowFatal = cfg.ShowFatal && l != model.LevelFatal
		}
	}
	cfg.TagFilter, cfg.MessageFilter, cfg.PIDFilter = o.tag, o.message, o.pid
	eng.Apply(cfg)

	return &Droidlog{
		engine: eng,
		asmOpts: []assembler.Option{
			assembler.WithDebounce(o.debounce),
			assembler.WithMerge(o.merge),
			assembler.WithPreserveIndent(o.preserveIndent),
		},
	}
}

// Assemble builds records from a complete capture and returns those passing
// the current filter. Each record's Index is its position among all
// assembled records.
func (d *Droidlog) Assemble(lines []string) []Record {
	return recordsFromModel(d.engine.Filter(assembler.Assemble(lines, d.asmOpts...)))
}

// AssembleReader is Assemble for a capture read from r.
func (d *Droidlog) AssembleReader(r io.Reader) ([]Record, error) {
	all, err := assembler.AssembleReader(r, d.asmOpts...)
	if err != nil {
		return nil, fmt.Errorf("droidlog: %w", err)
	}
	return recordsFromModel(d.engine.Filter(all)), nil
}

// Stream reads lines from r as they arrive and calls fn for every record
// that passes the filter. It returns when r reaches EOF (nil), r fails, or
// ctx is cancelled (ctx.Err()). The record still open at that point is
// delivered first unless r failed. fn is called from a single goroutine.
func (d *Droidlog) Stream(ctx context.Context, r io.Reader, fn func(Record)) error {
	p := pipeline.New(&stdin.Connector{Reader: r}, d.engine, funcOutput(fn),
		pipeline.WithAssemblerOptions(d.asmOpts...))
	if err := p.Stream(ctx, connector.ConnectorConfig{Provider: "stdin"}); err != nil {
		return fmt.Errorf("droidlog: %w", err)
	}
	return nil
}

// Matches reports whether r passes the current filter.
func (d *Droidlog) Matches(r Record) bool {
	return d.engine.Matches(r.toModel())
}

// SetLevel shows or hides one level by name.
func (d *Droidlog) SetLevel(level string, show bool) error {
	l, err := model.ParseLevelName(level)
	if err != nil {
		return fmt.Errorf("droidlog: %w", err)
	}
	d.engine.SetLevel(l, show)
	return nil
}

func (d *Droidlog) SetTagFilter(expr string)     { d.engine.SetTagFilter(expr) }
func (d *Droidlog) SetMessageFilter(expr string) { d.engine.SetMessageFilter(expr) }
func (d *Droidlog) SetPIDFilter(expr string)     { d.engine.SetPIDFilter(expr) }

// Reset shows every level and clears all expressions.
func (d *Droidlog) Reset() {
	d.engine.Reset()
}

// Packages lists the pid to package mappings learned from ActivityManager
// process-start lines seen by Stream.
func (d *Droidlog) Packages() map[int]string {
	out := make(map[int]string)
	for _, p := range d.engine.PIDPackages() {
		out[p.PID] = p.Package
	}
	return out
}

// Parse parses a single threadtime line. A line that is not a header
// produces an Info record tagged "Unknown" carrying the line as its message.
func Parse(line string) Record {
	r, _ := parser.Parse(line)
	return recordFromModel(r)
}

// Match evaluates a filter expression against text: "||" or "or" separate
// alternatives; spaces, "+", "&" or "and" separate terms that must all
// appear. Matching is case-insensitive and an empty expression matches
// everything.
func Match(text, expr string) bool {
	return filter.Match(text, expr)
}

type funcOutput func(Record)

func (f funcOutput) Write(_ context.Context, r model.Record) error {
	f(recordFromModel(r))
	return nil
}

func (f funcOutput) Close() error { return nil }
