package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hejijunhao/droidlog/internal/assembler"
	"github.com/hejijunhao/droidlog/internal/connector"
)

// Config holds all droidlog configuration.
type Config struct {
	Source    SourceConfig    `toml:"source"`
	Assembler AssemblerConfig `toml:"assembler"`
	Output    OutputConfig    `toml:"output"`
	Log       LogConfig       `toml:"log"`
	Filter    FilterConfig    `toml:"filter"`
}

// SourceConfig selects and configures the connector.
type SourceConfig struct {
	Provider     string   `toml:"provider"`
	Path         string   `toml:"path"`
	Command      []string `toml:"command"`
	Serial       string   `toml:"serial"`
	Endpoint     string   `toml:"endpoint"`
	APIKey       string   `toml:"api_key"`
	PollInterval string   `toml:"poll_interval"`
	FromStart    bool     `toml:"from_start"`
}

// AssemblerConfig holds record assembly settings.
type AssemblerConfig struct {
	DebounceMS     int  `toml:"debounce_ms"`
	Merge          bool `toml:"merge"`
	PreserveIndent bool `toml:"preserve_indent"`
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format    string `toml:"format"`    // "text", "raw", "json"; empty picks per sink
	Path      string `toml:"path"`      // empty means stdout
	Verbosity string `toml:"verbosity"` // "minimal", "standard", "full"
	Color     bool   `toml:"color"`
	MaxSize   int64  `toml:"max_size"`
	Webhook   string `toml:"webhook"`

	// WebhookLevel is the lowest level posted to Webhook; empty posts all.
	WebhookLevel string `toml:"webhook_level"`
}

// LogConfig controls droidlog's own diagnostics.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// FilterConfig points at the persisted filter settings.
type FilterConfig struct {
	Prefs string `toml:"prefs"`
}

const (
	defaultConfigPath = "~/.config/droidlog/config.toml"
	defaultPrefsPath  = "~/.config/droidlog/prefs.toml"
)

// Default returns the configuration used when no file or env override is
// present.
func Default() Config {
	return Config{
		Source: SourceConfig{Provider: "exec"},
		Assembler: AssemblerConfig{
			DebounceMS: int(assembler.DefaultDebounce / time.Millisecond),
			Merge:      true,
		},
		Output: OutputConfig{
			Verbosity: "full",
			Color:     true,
		},
		Log:    LogConfig{Level: "info"},
		Filter: FilterConfig{Prefs: mustExpand(defaultPrefsPath)},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return defaultConfigPath
}

// Load reads the TOML file at path (the default location when empty), then
// applies DROIDLOG_* environment overrides. A missing file yields defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(bytes, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Source.Provider, "DROIDLOG_PROVIDER")
	setString(&cfg.Source.Path, "DROIDLOG_PATH")
	setString(&cfg.Source.Serial, "DROIDLOG_SERIAL")
	setString(&cfg.Source.Endpoint, "DROIDLOG_ENDPOINT")
	setString(&cfg.Source.APIKey, "DROIDLOG_API_KEY")
	setString(&cfg.Source.PollInterval, "DROIDLOG_POLL_INTERVAL")
	if v := os.Getenv("DROIDLOG_COMMAND"); v != "" {
		cfg.Source.Command = strings.Fields(v)
	}
	setInt(&cfg.Assembler.DebounceMS, "DROIDLOG_DEBOUNCE_MS")
	setBool(&cfg.Assembler.Merge, "DROIDLOG_MERGE")
	setString(&cfg.Output.Format, "DROIDLOG_OUTPUT")
	setString(&cfg.Output.Path, "DROIDLOG_OUTPUT_PATH")
	setString(&cfg.Output.Verbosity, "DROIDLOG_VERBOSITY")
	setBool(&cfg.Output.Color, "DROIDLOG_COLOR")
	setString(&cfg.Output.Webhook, "DROIDLOG_WEBHOOK")
	setString(&cfg.Output.WebhookLevel, "DROIDLOG_WEBHOOK_LEVEL")
	setString(&cfg.Log.Level, "DROIDLOG_LOG_LEVEL")
	setBool(&cfg.Log.JSON, "DROIDLOG_LOG_JSON")
	setString(&cfg.Filter.Prefs, "DROIDLOG_PREFS")
}

func (c *Config) normalize() error {
	c.Source.Provider = strings.ToLower(strings.TrimSpace(c.Source.Provider))
	if c.Source.Provider == "" {
		c.Source.Provider = "exec"
	}
	if c.Source.PollInterval != "" {
		if _, err := time.ParseDuration(c.Source.PollInterval); err != nil {
			return fmt.Errorf("source.poll_interval: %w", err)
		}
	}
	if c.Assembler.DebounceMS <= 0 {
		return fmt.Errorf("assembler.debounce_ms must be positive, got %d", c.Assembler.DebounceMS)
	}
	if c.Output.MaxSize < 0 {
		return fmt.Errorf("output.max_size must not be negative")
	}
	for _, p := range []*string{&c.Source.Path, &c.Output.Path, &c.Filter.Prefs} {
		if strings.TrimSpace(*p) != "" {
			*p = mustExpand(*p)
		}
	}
	return nil
}

// ConnectorConfig converts the source section for the connector layer.
func (c Config) ConnectorConfig() connector.ConnectorConfig {
	extra := map[string]string{}
	if c.Source.Serial != "" {
		extra["serial"] = c.Source.Serial
	}
	if c.Source.PollInterval != "" {
		extra["poll_interval"] = c.Source.PollInterval
	}
	if c.Source.FromStart {
		extra["from_start"] = "true"
	}
	if len(extra) == 0 {
		extra = nil
	}
	return connector.ConnectorConfig{
		Provider: c.Source.Provider,
		Path:     c.Source.Path,
		Command:  c.Source.Command,
		Endpoint: c.Source.Endpoint,
		APIKey:   c.Source.APIKey,
		Extra:    extra,
	}
}

// AssemblerOptions converts the assembler section into assembler options.
func (c Config) AssemblerOptions() []assembler.Option {
	return []assembler.Option{
		assembler.WithDebounce(time.Duration(c.Assembler.DebounceMS) * time.Millisecond),
		assembler.WithMerge(c.Assembler.Merge),
		assembler.WithPreserveIndent(c.Assembler.PreserveIndent),
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
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
