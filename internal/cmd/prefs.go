package cmd

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/prefs"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or reset saved filter settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the saved filter settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				b, err := toml.Marshal(prefs.Load(a.cfg.Filter.Prefs))
				if err != nil {
					return fmt.Errorf("marshal prefs: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Show every level, clear expressions and history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return prefs.Save(a.cfg.Filter.Prefs, prefs.Default())
			},
		},
		&cobra.Command{
			Use:   "clear-history",
			Short: "Forget remembered expressions, keep the current filters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				eng := filter.NewEngine()
				prefs.Load(a.cfg.Filter.Prefs).Apply(eng)
				eng.ClearHistory()
				return prefs.Save(a.cfg.Filter.Prefs, prefs.FromEngine(eng))
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the prefs file location",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Filter.Prefs)
			},
		},
	)
	return cmd
}
