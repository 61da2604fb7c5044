package model

import (
	"fmt"
	"strings"
	"time"
)

// Tags assigned to records that did not come from a well-formed header line.
const (
	TagUnknown    = "Unknown"    // orphan continuation line, no open record
	TagParseError = "ParseError" // header matched but field extraction failed
)

// NoIndex marks a record that has not been through a static filter pass.
const NoIndex = -1

// Record is one logical logcat event, possibly assembled from several lines.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	PID       int       `json:"pid"`
	TID       int       `json:"tid"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`
	RawText   string    `json:"raw,omitempty"` // original source lines, newline-joined
	Merged    bool      `json:"merged,omitempty"`
	Pinned    bool      `json:"pinned,omitempty"`

	// OriginalIndex is the position assigned by a static filter pass over a
	// known-size collection. NoIndex for live records.
	OriginalIndex int `json:"index"`
}

// MergeableWith reports whether r and other describe the same instant from
// the same thread: identical PID, TID and millisecond timestamp.
func (r Record) MergeableWith(other Record) bool {
	return r.PID == other.PID &&
		r.TID == other.TID &&
		r.Timestamp.Truncate(time.Millisecond).Equal(other.Timestamp.Truncate(time.Millisecond))
}

// Merge folds a later record into r. The canonical fields of r are kept;
// message and raw text are appended in arrival order.
func (r *Record) Merge(later Record) {
	r.Message += "\n" + later.Message
	r.RawText += "\n" + later.RawText
	r.Merged = true
	r.Pinned = r.Pinned || later.Pinned
}

// AppendLine attaches a continuation line. message is what ends up in
// Message (usually the trimmed line), raw is the line as received.
func (r *Record) AppendLine(message, raw string) {
	r.Message += "\n" + message
	r.RawText += "\n" + raw
	r.Merged = true
}

// IsMultiLine reports whether the message spans more than one line.
func (r Record) IsMultiLine() bool {
	return strings.Contains(r.Message, "\n")
}

// LineCount returns the number of lines in the message.
func (r Record) LineCount() int {
	return strings.Count(r.Message, "\n") + 1
}

// String renders the record in the save format:
// MM-dd HH:mm:ss.fff   pid   tid Level Tag: Message
func (r Record) String() string {
	return fmt.Sprintf("%s %5d %5d %s %s: %s",
		r.Timestamp.Format("01-02 15:04:05.000"), r.PID, r.TID, r.Level, r.Tag, r.Message)
}
