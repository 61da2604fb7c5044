package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/model"
	"github.com/hejijunhao/droidlog/internal/prefs"
)

// filterFlags are the filter settings every record-producing command accepts.
// Flags override the saved prefs for this run.
type filterFlags struct {
	tag       string
	message   string
	pid       string
	hide      []string
	noPrefs   bool
	savePrefs bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.tag, "tag", "t", "", "tag filter expression")
	fs.StringVarP(&f.message, "message", "m", "", "message filter expression")
	fs.StringVar(&f.pid, "pid", "", "PID filter (a number matches exactly)")
	fs.StringSliceVar(&f.hide, "hide", nil, "levels to hide (e.g. verbose,debug)")
	fs.BoolVar(&f.noPrefs, "no-prefs", false, "ignore saved filter settings")
	fs.BoolVar(&f.savePrefs, "save-prefs", false, "save the resulting filter settings")
}

// engine builds the filter engine for this run.
func (f *filterFlags) engine(cmd *cobra.Command, prefsPath string) (*filter.Engine, error) {
	eng := filter.NewEngine()
	if !f.noPrefs {
		prefs.Load(prefsPath).Apply(eng)
	}

	fs := cmd.Flags()
	if fs.Changed("tag") {
		eng.SetTagFilter(f.tag)
		eng.AddHistory(filter.HistoryTag, f.tag)
	}
	if fs.Changed("message") {
		eng.SetMessageFilter(f.message)
		eng.AddHistory(filter.HistoryMessage, f.message)
	}
	if fs.Changed("pid") {
		eng.SetPIDFilter(f.pid)
		eng.AddHistory(filter.HistoryPID, f.pid)
	}
	for _, name := range f.hide {
		l, err := model.ParseLevelName(name)
		if err != nil {
			return nil, fmt.Errorf("--hide: %w", err)
		}
		eng.SetLevel(l, false)
	}
	return eng, nil
}

func (f *filterFlags) save(eng *filter.Engine, prefsPath string) {
	if !f.savePrefs {
		return
	}
	if err := prefs.Save(prefsPath, prefs.FromEngine(eng)); err != nil {
		slog.Warn("saving prefs failed", "path", prefsPath, "error", err)
	}
}
