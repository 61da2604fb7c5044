// Package cmd implements the droidlog command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/config"
	"github.com/hejijunhao/droidlog/internal/logging"
)

// app carries state shared by all commands of one invocation.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	cfg config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "droidlog",
		Short: "Structured Android logcat viewer",
		Long: `droidlog reads Android logcat output in threadtime format, assembles
multi-line messages into single records, and filters them by level, tag,
message and PID.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default is $HOME/.config/droidlog/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "diagnostic log level (debug/info/warn/error)")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "write diagnostics as JSON")

	root.AddCommand(
		newStreamCmd(a),
		newOpenCmd(a),
		newMatchCmd(),
		newPrefsCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = a.logJSON
	}
	a.cfg = cfg
	logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))
	return nil
}
