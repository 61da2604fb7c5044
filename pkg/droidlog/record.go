package droidlog

import (
	"time"

	"github.com/hejijunhao/droidlog/internal/model"
)

// Record is one assembled logcat event.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`            // Verbose, Debug, Info, Warn, Error, Fatal or Unknown
	PID       int       `json:"pid"`
	TID       int       `json:"tid"`
	Tag       string    `json:"tag"`
	Message   string    `json:"message"`          // continuation lines joined with "\n"
	Raw       string    `json:"raw,omitempty"`    // source lines as read
	Merged    bool      `json:"merged,omitempty"` // built from more than one line
	Pinned    bool      `json:"pinned,omitempty"` // kept by a Buffer when it evicts
	Index     int       `json:"index"`            // position among all assembled records; -1 when streamed
}

// Lines returns the number of message lines.
func (r Record) Lines() int {
	return model.Record{Message: r.Message}.LineCount()
}

func recordFromModel(m model.Record) Record {
	return Record{
		Timestamp: m.Timestamp,
		Level:     m.Level.String(),
		PID:       m.PID,
		TID:       m.TID,
		Tag:       m.Tag,
		Message:   m.Message,
		Raw:       m.RawText,
		Merged:    m.Merged,
		Pinned:    m.Pinned,
		Index:     m.OriginalIndex,
	}
}

func (r Record) toModel() model.Record {
	l, err := model.ParseLevelName(r.Level)
	if err != nil {
		l = model.LevelUnknown
	}
	return model.Record{
		Timestamp:     r.Timestamp,
		Level:         l,
		PID:           r.PID,
		TID:           r.TID,
		Tag:           r.Tag,
		Message:       r.Message,
		RawText:       r.Raw,
		Merged:        r.Merged,
		Pinned:        r.Pinned,
		OriginalIndex: model.NoIndex,
	}
}

func recordsFromModel(ms []model.Record) []Record {
	out := make([]Record, len(ms))
	for i, m := range ms {
		out[i] = recordFromModel(m)
	}
	return out
}
