// Package store keeps the most recent records in memory and maintains the
// filtered view of them. It is an output.Output, so a pipeline can write into
// it like any other sink.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/model"
)

// DefaultCapacity is the number of records retained when none is configured.
const DefaultCapacity = 50_000

// ErrOutOfRange is returned for an index that does not name a retained record.
var ErrOutOfRange = errors.New("store: index out of range")

// Option configures a Store.
type Option func(*Store)

// WithCapacity bounds the number of retained records.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// Store is a bounded, ordered record buffer. When full, the oldest unpinned
// records are evicted in batches. The filtered view is rebuilt whenever the engine's
// settings change.
type Store struct {
	engine   *filter.Engine
	capacity int
	cancel   func()

	mu          sync.Mutex
	records     []model.Record
	view        []model.Record
	dirty       bool // view must be rebuilt from records
	evicted     int
	compactions int
	refilters   int
}

// New creates a Store that filters with engine and follows its changes.
func New(engine *filter.Engine, opts ...Option) *Store {
	s := &Store{engine: engine, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	s.cancel = engine.OnChange(func(filter.Config) { s.refilter() })
	return s
}

// Write appends record. It never fails on a live store.
func (s *Store) Write(_ context.Context, record model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.OriginalIndex = model.NoIndex
	s.records = append(s.records, record)
	if len(s.records) > s.capacity {
		s.evictLocked()
		return nil
	}
	if !s.dirty && s.engine.Matches(record) {
		record.OriginalIndex = len(s.records) - 1
		s.view = append(s.view, record)
	}
	return nil
}

// evictBatch is how many records one eviction pass removes.
func (s *Store) evictBatch() int {
	return max(1, s.capacity/16)
}

// evictLocked compacts records in place, dropping the oldest unpinned ones.
// A pass removes a whole batch so a full store compacts once per batch of
// writes, not on every write.
func (s *Store) evictLocked() {
	want := len(s.records) - s.capacity - 1 + s.evictBatch()
	kept := s.records[:0]
	dropped := 0
	for _, r := range s.records {
		if dropped < want && !r.Pinned {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	// Too many pins: the oldest go regardless.
	if over := len(kept) - s.capacity; over > 0 {
		kept = append(kept[:0], kept[over:]...)
		dropped += over
	}
	clear(s.records[len(kept):])
	s.records = kept
	s.evicted += dropped
	s.compactions++
	s.dirty = true
}

// Close stops following the engine.
func (s *Store) Close() error {
	s.cancel()
	return nil
}

func (s *Store) refilter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = s.engine.Filter(s.records)
	s.dirty = false
	s.refilters++
}

// View returns the records that pass the current filter, oldest first. Each
// carries its position in All as OriginalIndex.
func (s *Store) View() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.view = s.engine.Filter(s.records)
		s.dirty = false
	}
	out := make([]model.Record, len(s.view))
	copy(out, s.view)
	return out
}

// All returns every retained record, oldest first.
func (s *Store) All() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// TogglePin flips the pinned flag of the record at index (a position in
// All, i.e. a view record's OriginalIndex) and returns the new state.
func (s *Store) TogglePin(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.records) {
		return false, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	s.records[index].Pinned = !s.records[index].Pinned
	s.dirty = true
	return s.records[index].Pinned, nil
}

// Pinned returns the pinned records, oldest first.
func (s *Store) Pinned() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Record
	for _, r := range s.records {
		if r.Pinned {
			out = append(out, r)
		}
	}
	return out
}

// Clear drops every record, pinned or not.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.view = nil
	s.dirty = false
}

// Stats describes the store's activity.
type Stats struct {
	Retained    int
	Visible     int
	Evicted     int
	Compactions int // eviction passes
	Refilters   int
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.view = s.engine.Filter(s.records)
		s.dirty = false
	}
	return Stats{
		Retained:    len(s.records),
		Visible:     len(s.view),
		Evicted:     s.evicted,
		Compactions: s.compactions,
		Refilters:   s.refilters,
	}
}
