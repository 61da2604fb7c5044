package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/config"
	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/output"
	"github.com/hejijunhao/droidlog/internal/output/file"
	"github.com/hejijunhao/droidlog/internal/pipeline"
	"github.com/hejijunhao/droidlog/internal/store"
)

type streamOptions struct {
	provider  string
	path      string
	serial    string
	endpoint  string
	fromStart bool
	noMerge   bool
	save      string
	capacity  int
	packages  bool

	filters filterFlags
	outputs outputFlags
}

func newStreamCmd(a *app) *cobra.Command {
	o := &streamOptions{}
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream live logcat records",
		Long: `Stream records from a live source until it ends or droidlog is interrupted.

Examples:
  # Follow the attached device
  droidlog stream

  # Only errors from one app's process
  droidlog stream --hide verbose,debug,info --pid 4321

  # Tail a file another tool is writing, keep the filtered view on exit
  droidlog stream -p follow --path device.log --save ~/captures/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStream(cmd, a.cfg, o)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&o.provider, "provider", "p", "", "source: exec, follow, file, stdin or relay")
	fs.StringVar(&o.path, "path", "", "file to read (file and follow)")
	fs.StringVarP(&o.serial, "serial", "s", "", "device serial passed to adb -s")
	fs.StringVar(&o.endpoint, "endpoint", "", "relay base URL")
	fs.BoolVar(&o.fromStart, "from-start", false, "follow: read existing content first")
	fs.BoolVar(&o.noMerge, "no-merge", false, "keep same-timestamp lines as separate records")
	fs.StringVar(&o.save, "save", "", "on exit, save the filtered records to this file or directory")
	fs.IntVar(&o.capacity, "buffer", store.DefaultCapacity, "records retained for --save")
	fs.BoolVar(&o.packages, "packages", false, "on exit, list the process to package mappings seen")
	o.filters.register(cmd)
	o.outputs.register(cmd)
	return cmd
}

func (o *streamOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("provider") {
		cfg.Source.Provider = o.provider
	}
	if fs.Changed("path") {
		cfg.Source.Path = o.path
	}
	if fs.Changed("serial") {
		cfg.Source.Serial = o.serial
	}
	if fs.Changed("endpoint") {
		cfg.Source.Endpoint = o.endpoint
	}
	if o.fromStart {
		cfg.Source.FromStart = true
	}
	if o.noMerge {
		cfg.Assembler.Merge = false
	}
	o.outputs.apply(cmd, &cfg.Output)
}

func runStream(cmd *cobra.Command, cfg config.Config, o *streamOptions) error {
	o.apply(cmd, &cfg)

	eng, err := o.filters.engine(cmd, cfg.Filter.Prefs)
	if err != nil {
		return err
	}
	conn, err := newConnector(cmd, cfg.Source.Provider)
	if err != nil {
		return err
	}
	out, err := buildOutput(cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithAssemblerOptions(cfg.AssemblerOptions()...)}
	var st *store.Store
	if o.save != "" {
		st = store.New(eng, store.WithCapacity(o.capacity))
		defer st.Close()
		opts = append(opts, pipeline.WithTap(st))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(conn, eng, out, opts...)
	session := p.NewSession()
	slog.Info("streaming", "session", session.ID, "provider", cfg.Source.Provider)

	streamErr := session.Stream(ctx, cfg.ConnectorConfig())
	if errors.Is(streamErr, context.Canceled) {
		streamErr = nil
	}
	closeErr := p.Close()

	stats := session.Stats()
	slog.Info("stream ended", "session", session.ID,
		"lines", stats.Lines, "records", stats.Records, "written", stats.Written)

	if st != nil {
		if err := saveView(o.save, st); err != nil {
			streamErr = errors.Join(streamErr, err)
		}
	}
	if o.packages {
		printPackages(cmd, eng)
	}
	o.filters.save(eng, cfg.Filter.Prefs)

	return errors.Join(streamErr, closeErr)
}

// saveView writes the store's filtered view. A directory target gets a
// timestamped file name.
func saveView(target string, st *store.Store) error {
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, output.DefaultFileName(time.Now()))
	}
	view := st.View()
	if err := file.Save(target, view); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	s := st.Stats()
	slog.Info("saved", "path", target, "records", len(view), "retained", s.Retained, "evicted", s.Evicted)
	return nil
}

func printPackages(cmd *cobra.Command, eng *filter.Engine) {
	w := cmd.ErrOrStderr()
	for _, p := range eng.PIDPackages() {
		fmt.Fprintf(w, "%6d  %s\n", p.PID, p.Package)
	}
}
