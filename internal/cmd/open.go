package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/config"
	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/pipeline"
)

type openOptions struct {
	limit   int
	noMerge bool

	filters filterFlags
	outputs outputFlags
}

func newOpenCmd(a *app) *cobra.Command {
	o := &openOptions{}
	cmd := &cobra.Command{
		Use:   "open FILE",
		Short: "Assemble and filter a saved capture",
		Long: `Read a saved logcat capture (plain, .gz or .zst) in one pass and print
the records that pass the filter. Use - to read standard input.

Examples:
  droidlog open capture.log --tag "ActivityManager || WindowManager"
  adb logcat -d -v threadtime | droidlog open - --hide verbose,debug
  droidlog open capture.log.zst --format raw -o errors.log --hide verbose,debug,info,warn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(cmd, a.cfg, o, args[0])
		},
	}
	cmd.Flags().IntVarP(&o.limit, "limit", "n", 0, "only the last N lines (0 for all)")
	cmd.Flags().BoolVar(&o.noMerge, "no-merge", false, "keep same-timestamp lines as separate records")
	o.filters.register(cmd)
	o.outputs.register(cmd)
	return cmd
}

func runOpen(cmd *cobra.Command, cfg config.Config, o *openOptions, path string) error {
	o.outputs.apply(cmd, &cfg.Output)
	if o.noMerge {
		cfg.Assembler.Merge = false
	}

	provider := "file"
	if path == "-" {
		provider, path = "stdin", ""
	}
	conn, err := newConnector(cmd, provider)
	if err != nil {
		return err
	}
	eng, err := o.filters.engine(cmd, cfg.Filter.Prefs)
	if err != nil {
		return err
	}
	out, err := buildOutput(cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	p := pipeline.New(conn, eng, out, pipeline.WithAssemblerOptions(cfg.AssemblerOptions()...))
	queryErr := p.Query(cmd.Context(), connector.ConnectorConfig{Provider: provider, Path: path},
		connector.QueryParams{Limit: o.limit})
	closeErr := p.Close()
	o.filters.save(eng, cfg.Filter.Prefs)
	if queryErr != nil {
		return queryErr
	}
	return closeErr
}
