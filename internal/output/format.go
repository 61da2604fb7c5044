package output

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hejijunhao/droidlog/internal/model"
)

// Verbosity controls how much of a message is shown.
type Verbosity int

const (
	Minimal  Verbosity = iota // first PreviewLines lines, raw text dropped
	Standard                  // message truncated at StandardMaxRunes
	Full                      // everything
)

const (
	// PreviewLines is how many message lines Minimal keeps.
	PreviewLines = 3
	// StandardMaxRunes caps message length at Standard.
	StandardMaxRunes = 4000
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("verbosity(%d)", int(v))
	}
}

// ParseVerbosity accepts "minimal", "standard" or "full".
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, nil
	case "standard", "":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("unknown verbosity %q", s)
}

// Format selects how a record is serialized.
type Format int

const (
	FormatText Format = iota // threadtime-like, optionally coloured
	FormatRaw                // the source lines exactly as received
	FormatJSON               // one JSON object per line
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatRaw:
		return "raw"
	case FormatJSON:
		return "json"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat accepts "text", "raw" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "raw":
		return FormatRaw, nil
	case "json", "ndjson":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown format %q", s)
}

// FormatRecord returns a copy of r with the message shortened according to
// verbosity. At Minimal RawText is also dropped.
func FormatRecord(r model.Record, verbosity Verbosity) model.Record {
	switch verbosity {
	case Minimal:
		r.Message = Preview(r.Message, PreviewLines)
		r.RawText = ""
	case Standard:
		r.Message = truncate(r.Message, StandardMaxRunes)
	}
	return r
}

// Preview keeps the first maxLines lines of message and notes how many were
// left out.
//
//	Preview("a\nb\nc\nd\ne", 3) == "a\nb\nc\n... (+2 lines)"
func Preview(message string, maxLines int) string {
	if maxLines <= 0 {
		return message
	}
	lines := strings.Split(message, "\n")
	if len(lines) <= maxLines {
		return message
	}
	hidden := len(lines) - maxLines
	return strings.Join(lines[:maxLines], "\n") + fmt.Sprintf("\n... (+%d lines)", hidden)
}

// truncate shortens s to maxRunes runes, appending "..." when cut.
func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// DefaultFileName is the suggested name for a saved capture.
func DefaultFileName(t time.Time) string {
	return "logcat_" + t.Format("2006-01-02_15-04-05") + ".log"
}
