package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRecalcCmd() *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "recalc [courseKey]",
		Short: "Regrade subsections and re-evaluate gating",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either a course key or --all")
			}
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			var n int
			if all {
				n, err = core.ReconcileGating(cmd.Context())
			} else {
				n, err = core.Grades.Recalculate(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recalculated %d subsection grades\n", n)
			return nil
		},
	}
	c.Flags().BoolVar(&all, "all", false, "Reconcile every gating-enabled course")
	return c
}
