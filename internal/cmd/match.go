package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hejijunhao/droidlog/internal/connector"
	"github.com/hejijunhao/droidlog/internal/filter"
)

func newMatchCmd() *cobra.Command {
	var invert bool
	cmd := &cobra.Command{
		Use:   "match EXPR [TEXT...]",
		Short: "Evaluate a filter expression",
		Long: `Print each TEXT (or each line of standard input) that satisfies EXPR.

"||" or "or" separate alternatives; spaces, "+", "&" or "and" separate terms
that must all appear. Matching ignores case.

Examples:
  droidlog match "timeout || refused" "connection refused"
  adb logcat -d | droidlog match "fatal + com.example"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := filter.Compile(args[0])
			w := cmd.OutOrStdout()
			emit := func(text string) {
				if expr.Match(text) != invert {
					fmt.Fprintln(w, text)
				}
			}

			if len(args) > 1 {
				for _, text := range args[1:] {
					emit(text)
				}
				return nil
			}
			sc := connector.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				emit(sc.Text())
			}
			return sc.Err()
		},
	}
	cmd.Flags().BoolVarP(&invert, "invert", "v", false, "print the texts that do not match")
	return cmd
}
