// Package prefs persists filter settings between runs.
// Preferences are stored in ~/.config/droidlog/prefs.toml.
package prefs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hejijunhao/droidlog/internal/filter"
)

// Prefs holds the saved filter settings.
type Prefs struct {
	Levels  Levels  `toml:"levels"`
	Tag     string  `toml:"tag"`
	Message string  `toml:"message"`
	PID     string  `toml:"pid"`
	History History `toml:"history"`
}

// Levels holds the per-level visibility toggles.
type Levels struct {
	Verbose bool `toml:"verbose"`
	Debug   bool `toml:"debug"`
	Info    bool `toml:"info"`
	Warn    bool `toml:"warn"`
	Error   bool `toml:"error"`
	Fatal   bool `toml:"fatal"`
}

// History holds the recently used expressions, most recent first.
type History struct {
	Tag     []string `toml:"tag"`
	Message []string `toml:"message"`
	PID     []string `toml:"pid"`
}

const defaultPrefsPath = "~/.config/droidlog/prefs.toml"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Default shows every level with no expressions and empty histories.
func Default() Prefs {
	return Prefs{Levels: Levels{
		Verbose: true,
		Debug:   true,
		Info:    true,
		Warn:    true,
		Error:   true,
		Fatal:   true,
	}}
}

// Load reads preferences from the given path, falling back to defaults if
// the file is missing or unreadable.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default()
	}

	file, err := os.Open(resolved)
	if err != nil {
		return Default()
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Default()
	}

	p := Default()
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Default()
	}
	p.History.Tag = trim(p.History.Tag)
	p.History.Message = trim(p.History.Message)
	p.History.PID = trim(p.History.PID)
	return p
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

// Apply loads p into the engine: one settings change, then the histories.
func (p Prefs) Apply(e *filter.Engine) {
	e.Apply(p.Config())
	e.SetHistory(filter.HistoryTag, p.History.Tag)
	e.SetHistory(filter.HistoryMessage, p.History.Message)
	e.SetHistory(filter.HistoryPID, p.History.PID)
}

// Config returns the filter settings described by p.
func (p Prefs) Config() filter.Config {
	return filter.Config{
		ShowVerbose:   p.Levels.Verbose,
		ShowDebug:     p.Levels.Debug,
		ShowInfo:      p.Levels.Info,
		ShowWarn:      p.Levels.Warn,
		ShowError:     p.Levels.Error,
		ShowFatal:     p.Levels.Fatal,
		TagFilter:     p.Tag,
		MessageFilter: p.Message,
		PIDFilter:     p.PID,
	}
}

// FromEngine captures the engine's current settings and histories.
func FromEngine(e *filter.Engine) Prefs {
	c := e.Config()
	return Prefs{
		Levels: Levels{
			Verbose: c.ShowVerbose,
			Debug:   c.ShowDebug,
			Info:    c.ShowInfo,
			Warn:    c.ShowWarn,
			Error:   c.ShowError,
			Fatal:   c.ShowFatal,
		},
		Tag:     c.TagFilter,
		Message: c.MessageFilter,
		PID:     c.PIDFilter,
		History: History{
			Tag:     e.History(filter.HistoryTag),
			Message: e.History(filter.HistoryMessage),
			PID:     e.History(filter.HistoryPID),
		},
	}
}

func trim(h []string) []string {
	if len(h) == 0 {
		return nil
	}
	if len(h) > filter.MaxHistory {
		return h[:filter.MaxHistory]
	}
	return h
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
