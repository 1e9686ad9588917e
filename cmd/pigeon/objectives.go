package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/pigeon/internal/optimization/objectives"
)

func newObjectivesCmd() *cobra.Command {
	var dims int
	cmd := &cobra.Command{
		Use:   "objectives",
		Short: "List the registered objective functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDOMAIN\tMINIMUM\tCOST\tMIN DIMS")
			for _, name := range objectives.Names() {
				fn := objectives.MustGet(name)
				d := dims
				if d < fn.MinDimensions {
					d = fn.MinDimensions
				}
				best := fn.Minimum(d)
				fmt.Fprintf(tw, "%s\t[%g, %g]\t%s\t%g\t%d\n",
					fn.Name, fn.Domain[0], fn.Domain[1], formatVector(best.Parameters), best.Value, fn.MinDimensions)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&dims, "dims", 2, "Dimensions used to show the minimum")
	return cmd
}
