package filter

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hejijunhao/droidlog/internal/model"
)

// MaxHistory is the number of expressions kept per history list.
const MaxHistory = 20

// Config is an immutable snapshot of the filter settings. Version increases
// by one with every change.
type Config struct {
	ShowVerbose bool
	ShowDebug   bool
	ShowInfo    bool
	ShowWarn    bool
	ShowError   bool
	ShowFatal   bool

	TagFilter     string
	MessageFilter string
	PIDFilter     string

	Version uint64
}

// DefaultConfig shows every level and filters nothing.
func DefaultConfig() Config {
	return Config{
		ShowVerbose: true,
		ShowDebug:   true,
		ShowInfo:    true,
		ShowWarn:    true,
		ShowError:   true,
		ShowFatal:   true,
	}
}

// ShowLevel reports the toggle for l. LevelUnknown is always shown.
func (c Config) ShowLevel(l model.Level) bool {
	switch l {
	case model.LevelVerbose:
		return c.ShowVerbose
	case model.LevelDebug:
		return c.ShowDebug
	case model.LevelInfo:
		return c.ShowInfo
	case model.LevelWarn:
		return c.ShowWarn
	case model.LevelError:
		return c.ShowError
	case model.LevelFatal:
		return c.ShowFatal
	default:
		return true
	}
}

func (c Config) withLevel(l model.Level, show bool) Config {
	switch l {
	case model.LevelVerbose:
		c.ShowVerbose = show
	case model.LevelDebug:
		c.ShowDebug = show
	case model.LevelInfo:
		c.ShowInfo = show
	case model.LevelWarn:
		c.ShowWarn = show
	case model.LevelError:
		c.ShowError = show
	case model.LevelFatal:
		c.ShowFatal = show
	}
	return c
}

// sameSettings compares everything except Version.
func (c Config) sameSettings(other Config) bool {
	c.Version = other.Version
	return c == other
}

// snapshot pairs a Config with its compiled expressions so Matches never
// recompiles on the hot path.
type snapshot struct {
	cfg      Config
	tag      Expression
	message  Expression
	pid      Expression
	pidNum   int
	pidExact bool
}

func compileSnapshot(cfg Config) *snapshot {
	s := &snapshot{
		cfg:     cfg,
		tag:     Compile(cfg.TagFilter),
		message: Compile(cfg.MessageFilter),
		pid:     Compile(cfg.PIDFilter),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cfg.PIDFilter)); err == nil {
		s.pidNum, s.pidExact = n, true
	}
	return s
}

// HistoryKind selects one of the expression history lists.
type HistoryKind int

const (
	HistoryTag HistoryKind = iota
	HistoryMessage
	HistoryPID
)

// PIDPackage associates a process id with the package that owns it.
type PIDPackage struct {
	PID     int
	Package string
}

type subscriber struct {
	id int
	fn func(Config)
}

// Engine holds the current filter settings and decides which records pass.
// Matches and Config are lock-free and safe to call from any goroutine while
// settings change.
type Engine struct {
	current atomic.Pointer[snapshot]

	mu     sync.Mutex // serializes writers and notification delivery
	subs   []subscriber
	nextID int

	histMu    sync.Mutex
	histories [3][]string
	packages  map[int]string
}

// NewEngine returns an engine with DefaultConfig.
func NewEngine() *Engine {
	e := &Engine{packages: make(map[int]string)}
	e.current.Store(compileSnapshot(DefaultConfig()))
	return e
}

// Config returns the current settings.
func (e *Engine) Config() Config {
	return e.current.Load().cfg
}

// OnChange registers fn to be called with the new Config after every change.
// Callbacks run on the goroutine that made the change, one at a time, and
// must not modify the engine. The returned func unregisters fn.
func (e *Engine) OnChange(fn func(Config)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s subscriber) bool { return s.id == id })
	}
}

// update applies change and notifies when the result differs. force
// publishes and notifies even when nothing changed.
func (e *Engine) update(change func(Config) Config, force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.current.Load().cfg
	next := change(old)
	if !force && next.sameSettings(old) {
		return
	}
	next.Version = old.Version + 1
	e.current.Store(compileSnapshot(next))
	for _, s := range e.subs {
		s.fn(next)
	}
}

// SetLevel toggles visibility of one level. LevelUnknown is ignored.
func (e *Engine) SetLevel(l model.Level, show bool) {
	e.update(func(c Config) Config { return c.withLevel(l, show) }, false)
}

func (e *Engine) SetShowVerbose(show bool) { e.SetLevel(model.LevelVerbose, show) }
func (e *Engine) SetShowDebug(show bool)   { e.SetLevel(model.LevelDebug, show) }
func (e *Engine) SetShowInfo(show bool)    { e.SetLevel(model.LevelInfo, show) }
func (e *Engine) SetShowWarn(show bool)    { e.SetLevel(model.LevelWarn, show) }
func (e *Engine) SetShowError(show bool)   { e.SetLevel(model.LevelError, show) }
func (e *Engine) SetShowFatal(show bool)   { e.SetLevel(model.LevelFatal, show) }

func (e *Engine) SetTagFilter(expr string) {
	e.update(func(c Config) Config { c.TagFilter = expr; return c }, false)
}

func (e *Engine) SetMessageFilter(expr string) {
	e.update(func(c Config) Config { c.MessageFilter = expr; return c }, false)
}

func (e *Engine) SetPIDFilter(expr string) {
	e.update(func(c Config) Config { c.PIDFilter = expr; return c }, false)
}

// Apply replaces all settings at once with a single notification when
// anything differs. cfg.Version is ignored.
func (e *Engine) Apply(cfg Config) {
	e.update(func(Config) Config { return cfg }, false)
}

// Reset restores DefaultConfig. Every call produces exactly one
// notification, including when the settings are already at their defaults.
func (e *Engine) Reset() {
	e.update(func(Config) Config { return DefaultConfig() }, true)
}

// Matches reports whether r passes the current settings.
func (e *Engine) Matches(r model.Record) bool {
	return e.current.Load().matches(r)
}

func (s *snapshot) matches(r model.Record) bool {
	if !s.cfg.ShowLevel(r.Level) {
		return false
	}
	if !s.tag.Match(r.Tag) {
		return false
	}
	if !s.message.Match(r.Message) {
		return false
	}
	if s.pidExact {
		return r.PID == s.pidNum
	}
	return s.pid.Match(strconv.Itoa(r.PID))
}

// Filter returns the records that pass, in order, each carrying its
// position in records as OriginalIndex. One snapshot is used for the whole
// pass.
func (e *Engine) Filter(records []model.Record) []model.Record {
	s := e.current.Load()
	out := make([]model.Record, 0, len(records))
	for i, r := range records {
		if !s.matches(r) {
			continue
		}
		r.OriginalIndex = i
		out = append(out, r)
	}
	return out
}

// AddHistory moves expr to the front of the kind's history, dropping
// duplicates and anything past MaxHistory. Blank expressions are ignored.
func (e *Engine) AddHistory(kind HistoryKind, expr string) {
	expr = strings.TrimSpace(expr)
	if expr == "" || !kind.valid() {
		return
	}
	e.histMu.Lock()
	defer e.histMu.Unlock()
	h := slices.DeleteFunc(slices.Clone(e.histories[kind]), func(s string) bool { return s == expr })
	h = append([]string{expr}, h...)
	if len(h) > MaxHistory {
		h = h[:MaxHistory]
	}
	e.histories[kind] = h
}

// SetHistory replaces a history list, e.g. when restoring saved prefs.
func (e *Engine) SetHistory(kind HistoryKind, items []string) {
	if !kind.valid() {
		return
	}
	e.histMu.Lock()
	e.histories[kind] = nil
	e.histMu.Unlock()
	// Insert oldest first so the saved order is kept.
	for i := len(items) - 1; i >= 0; i-- {
		e.AddHistory(kind, items[i])
	}
}

// History returns a copy of the kind's history, most recent first.
func (e *Engine) History(kind HistoryKind) []string {
	if !kind.valid() {
		return nil
	}
	e.histMu.Lock()
	defer e.histMu.Unlock()
	return slices.Clone(e.histories[kind])
}

// ClearHistory empties all three history lists.
func (e *Engine) ClearHistory() {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	for i := range e.histories {
		e.histories[i] = nil
	}
}

func (k HistoryKind) valid() bool {
	return k >= HistoryTag && k <= HistoryPID
}

// UpdatePIDPackage records which package owns pid. An empty name removes
// the entry.
func (e *Engine) UpdatePIDPackage(pid int, pkg string) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	if pkg == "" {
		delete(e.packages, pid)
		return
	}
	e.packages[pid] = pkg
}

// PackageFor returns the package name known for pid.
func (e *Engine) PackageFor(pid int) (string, bool) {
	e.histMu.Lock()
	defer e.histMu.Unlock()
	pkg, ok := e.packages[pid]
	return pkg, ok
}

// PIDPackages lists the known mappings sorted by package name, then pid.
func (e *Engine) PIDPackages() []PIDPackage {
	e.histMu.Lock()
	out := make([]PIDPackage, 0, len(e.packages))
	for pid, pkg := range e.packages {
		out = append(out, PIDPackage{PID: pid, Package: pkg})
	}
	e.histMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].PID < out[j].PID
	})
	return out
}
