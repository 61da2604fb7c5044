package droidlog

import (
	"context"
	"fmt"

	"github.com/hejijunhao/droidlog/internal/store"
)

// Buffer retains the most recent records and keeps the subset that passes
// its Droidlog's filter, updated whenever the filter changes. When full, the
// oldest unpinned records are dropped first.
type Buffer struct {
	st *store.Store
}

// NewBuffer creates a Buffer that filters with d. capacity <= 0 uses the
// default of 50 000 records. Close it when done so it stops following d.
func (d *Droidlog) NewBuffer(capacity int) *Buffer {
	return &Buffer{st: store.New(d.engine, store.WithCapacity(capacity))}
}

// Add appends r. Its signature fits Stream's callback:
//
//	buf := d.NewBuffer(0)
//	err := d.Stream(ctx, r, buf.Add)
func (b *Buffer) Add(r Record) {
	b.st.Write(context.Background(), r.toModel())
}

// View returns the retained records that pass the filter, oldest first.
// Index is each record's position in All.
func (b *Buffer) View() []Record {
	return recordsFromModel(b.st.View())
}

// All returns every retained record, oldest first.
func (b *Buffer) All() []Record {
	out := recordsFromModel(b.st.All())
	for i := range out {
		out[i].Index = i
	}
	return out
}

// TogglePin flips the pin on the record at index, a position in All (or a
// View record's Index), and returns the new state.
func (b *Buffer) TogglePin(index int) (bool, error) {
	pinned, err := b.st.TogglePin(index)
	if err != nil {
		return false, fmt.Errorf("droidlog: %w", err)
	}
	return pinned, nil
}

// Pinned returns the pinned records, oldest first.
func (b *Buffer) Pinned() []Record {
	return recordsFromModel(b.st.Pinned())
}

// Len returns the number of retained records.
func (b *Buffer) Len() int {
	return b.st.Len()
}

// Clear drops every record, pinned or not.
func (b *Buffer) Clear() {
	b.st.Clear()
}

// Close stops following the filter.
func (b *Buffer) Close() error {
	return b.st.Close()
}
