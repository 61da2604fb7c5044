// Package assembler turns an ordered stream of logcat lines into records.
//
// Continuation lines (stack traces, wrapped output) are appended to the
// record opened by the last header line, and header lines that share pid,
// tid and timestamp with the open record are folded into it. Because the
// next line of a multi-line event may still be in flight, a live Assembler
// holds the open record for a short debounce window before emitting it.
// Assemble and AssembleReader run the same rules synchronously over input
// that is already complete.
package assembler

import (
	"sync"
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/parser"
)

// DefaultDebounce is how long a pending record waits for further lines.
const DefaultDebounce = 100 * time.Millisecond

type options struct {
	debounce       time.Duration
	mergeable      func(a, b model.Record) bool
	preserveIndent bool
	parser         *parser.Parser
}

// Option configures an Assembler or the synchronous Assemble helpers.
type Option func(*options)

// WithDebounce sets the debounce window. Values <= 0 keep the default.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithMerge enables or disables folding of same pid/tid/timestamp header
// lines into one record. Default: enabled.
func WithMerge(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.mergeable = mergeableDefault
		} else {
			o.mergeable = nil
		}
	}
}

// WithMergeFunc replaces the mergeability test.
func WithMergeFunc(f func(a, b model.Record) bool) Option {
	return func(o *options) { o.mergeable = f }
}

// WithPreserveIndent keeps the leading whitespace of continuation lines in
// the record message. Default: continuation lines are trimmed.
func WithPreserveIndent(preserve bool) Option {
	return func(o *options) { o.preserveIndent = preserve }
}

// WithParser sets the parser used for header lines.
func WithParser(p *parser.Parser) Option {
	return func(o *options) { o.parser = p }
}

func mergeableDefault(a, b model.Record) bool {
	return a.MergeableWith(b)
}

func buildOptions(opts []Option) options {
	o := options{
		debounce:  DefaultDebounce,
		mergeable: mergeableDefault,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parser == nil {
		o.parser = parser.New()
	}
	return o
}

func newMachine(o options) machine {
	return machine{
		parser:         o.parser,
		mergeable:      o.mergeable,
		preserveIndent: o.preserveIndent,
	}
}

// Assembler is the live, timer-driven assembler. Line arrival, timer expiry
// and Stop/Reset are serialized by one mutex, so emit is always called with
// that mutex held and records leave in arrival order. emit must not call
// back into the Assembler.
type Assembler struct {
	emit     func(model.Record)
	debounce time.Duration

	mu    sync.Mutex
	m     machine
	timer *time.Timer
	gen   uint64 // bumped on every (re)arm; a timer only flushes its own generation
}

// New creates an Assembler that hands finished records to emit.
func New(emit func(model.Record), opts ...Option) *Assembler {
	o := buildOptions(opts)
	return &Assembler{
		emit:     emit,
		debounce: o.debounce,
		m:        newMachine(o),
	}
}

// Push feeds one raw line.
func (a *Assembler) Push(line string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.m.step(line, a.emit) {
		a.armLocked()
	}
}

// Flush emits the pending record now, if there is one.
func (a *Assembler) Flush() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
	a.m.flush(a.emit)
}

// Close handles end of stream: the pending record is emitted synchronously.
func (a *Assembler) Close() {
	a.Flush()
}

// Stop ends a session: the timer is cancelled, the pending record emitted,
// and the assembler returns to Idle ready for a new session.
func (a *Assembler) Stop() {
	a.Flush()
}

// Abort ends a session after a source failure. The pending record is
// discarded.
func (a *Assembler) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
	a.m.pending = nil
}

// Reset stops the current session and clears the counters.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
	a.m.flush(a.emit)
	a.m.reset()
}

// Pending returns a copy of the open record.
func (a *Assembler) Pending() (model.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.m.pending == nil {
		return model.Record{}, false
	}
	return *a.m.pending, true
}

// Stats returns the current counters.
func (a *Assembler) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m.stats
}

// armLocked (re)starts the debounce window. Caller must hold a.mu.
func (a *Assembler) armLocked() {
	a.disarmLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.debounce, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.gen != gen {
			// Re-armed or stopped while this callback waited for the lock.
			return
		}
		a.timer = nil
		a.m.flush(a.emit)
	})
}

// disarmLocked cancels the outstanding timer. Caller must hold a.mu.
func (a *Assembler) disarmLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
