package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/hejijunhao/droidlog/internal/model"
)

// Encoder serializes records to a writer in one Format. It is not safe for
// concurrent use; outputs that share one guard it themselves.
type Encoder struct {
	w         io.Writer
	format    Format
	verbosity Verbosity
	styles    map[model.Level]lipgloss.Style
}

// NewEncoder creates an Encoder. With color set, text records are styled
// per level; the styles degrade to plain text when w is not a terminal.
func NewEncoder(w io.Writer, format Format, verbosity Verbosity, color bool) *Encoder {
	e := &Encoder{w: w, format: format, verbosity: verbosity}
	if color && format == FormatText {
		e.styles = levelStyles(lipgloss.NewRenderer(w))
	}
	return e
}

func levelStyles(r *lipgloss.Renderer) map[model.Level]lipgloss.Style {
	return map[model.Level]lipgloss.Style{
		model.LevelVerbose: r.NewStyle().Foreground(lipgloss.Color("245")),
		model.LevelDebug:   r.NewStyle().Foreground(lipgloss.Color("39")),
		model.LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("42")),
		model.LevelWarn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		model.LevelError:   r.NewStyle().Foreground(lipgloss.Color("196")),
		model.LevelFatal:   r.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Bold(true),
	}
}

// Encode writes r followed by a newline.
func (e *Encoder) Encode(r model.Record) error {
	var data []byte
	switch e.format {
	case FormatRaw:
		data = []byte(r.RawText + "\n")
	case FormatJSON:
		b, err := json.Marshal(FormatRecord(r, e.verbosity))
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		data = append(b, '\n')
	default:
		data = []byte(e.text(r) + "\n")
	}
	_, err := e.w.Write(data)
	return err
}

func (e *Encoder) text(r model.Record) string {
	line := FormatRecord(r, e.verbosity).String()
	if r.Pinned {
		line = "* " + line
	}
	if style, ok := e.styles[r.Level]; ok {
		return style.Render(line)
	}
	return line
}
