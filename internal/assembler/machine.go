package assembler

import (
	"strings"

	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/parser"
)

// Stats counts what the assembler has seen since construction or the last
// Reset.
type Stats struct {
	Lines         int // non-blank lines consumed
	Records       int // records emitted
	Merges        int // header lines folded into an open record
	Continuations int // continuation lines appended to an open record
	Orphans       int // continuation lines emitted standalone
}

// machine is the Idle/Pending state machine shared by the live Assembler and
// the synchronous Assemble helpers. It is not safe for concurrent use; the
// live Assembler serializes access with its mutex.
type machine struct {
	parser         *parser.Parser
	mergeable      func(a, b model.Record) bool
	preserveIndent bool

	pending *model.Record
	stats   Stats
}

// step consumes one line. It emits any record that became final and reports
// whether the pending record was opened or extended, in which case the
// caller restarts its debounce window.
func (m *machine) step(line string, emit func(model.Record)) (extended bool) {
	if strings.TrimSpace(line) == "" {
		return false
	}
	m.stats.Lines++

	rec, header := m.parser.Parse(line)
	if header {
		if m.pending != nil && m.mergeable != nil && m.mergeable(*m.pending, rec) {
			m.pending.Merge(rec)
			m.stats.Merges++
			return true
		}
		m.flush(emit)
		m.pending = &rec
		return true
	}

	if m.pending == nil {
		// Nothing to attach to: the Unknown record goes out immediately.
		m.stats.Orphans++
		m.emit(rec, emit)
		return false
	}

	message := strings.TrimSpace(line)
	if m.preserveIndent {
		message = strings.TrimRight(line, " \t\r")
	}
	m.pending.AppendLine(message, line)
	m.stats.Continuations++
	return true
}

// flush emits the pending record, if any, and returns to Idle.
func (m *machine) flush(emit func(model.Record)) {
	if m.pending == nil {
		return
	}
	rec := *m.pending
	m.pending = nil
	m.emit(rec, emit)
}

func (m *machine) emit(rec model.Record, emit func(model.Record)) {
	m.stats.Records++
	emit(rec)
}

func (m *machine) reset() {
	m.pending = nil
	m.stats = Stats{}
}
