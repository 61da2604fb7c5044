package model

import "time"

// RawLine is the intermediate type produced by connectors and consumed by the
// assembler. A RawLine with a non-nil Err is a terminal failure signal and is
// always the last value a connector sends.
type RawLine struct {
	Text       string
	Source     string // connector name (e.g. "exec", "follow")
	ReceivedAt time.Time
	Err        error
}
