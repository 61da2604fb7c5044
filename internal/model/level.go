package model

import (
	"fmt"
	"strings"
)

// Level is a logcat priority. Values follow Android's android.util.Log
// constants so ordering comparisons work directly.
type Level int

const (
	LevelUnknown Level = 0
	LevelVerbose Level = 2
	LevelDebug   Level = 3
	LevelInfo    Level = 4
	LevelWarn    Level = 5
	LevelError   Level = 6
	LevelFatal   Level = 7
)

// Levels lists the defined priorities in ascending order.
var Levels = []Level{LevelVerbose, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal}

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "Verbose"
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	case LevelFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Letter returns the single-letter code used in threadtime output.
func (l Level) Letter() string {
	switch l {
	case LevelVerbose:
		return "V"
	case LevelDebug:
		return "D"
	case LevelInfo:
		return "I"
	case LevelWarn:
		return "W"
	case LevelError:
		return "E"
	case LevelFatal:
		return "F"
	default:
		return "?"
	}
}

// ParseLevelCode maps a threadtime letter to a Level. Anything unrecognised
// is Info: a record with an odd priority should still be shown.
func ParseLevelCode(code string) Level {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "V":
		return LevelVerbose
	case "D":
		return LevelDebug
	case "I":
		return LevelInfo
	case "W":
		return LevelWarn
	case "E":
		return LevelError
	case "F":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// ParseLevelName accepts either a full name ("warn", "Error") or a letter.
func ParseLevelName(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v", "verbose":
		return LevelVerbose, nil
	case "d", "debug":
		return LevelDebug, nil
	case "i", "info":
		return LevelInfo, nil
	case "w", "warn", "warning":
		return LevelWarn, nil
	case "e", "error":
		return LevelError, nil
	case "f", "fatal", "a", "assert":
		return LevelFatal, nil
	case "unknown":
		return LevelUnknown, nil
	}
	return LevelUnknown, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevelName(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
