package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPrereqCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "prereq",
		Short: "Add, remove or list prerequisite subsections",
	}
	c.AddCommand(&cobra.Command{
		Use:   "add <courseKey> <subsection>",
		Short: "Mark a subsection as a prerequisite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			m, err := core.Gating.AddPrerequisite(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prerequisite milestone %d (%s)\n", m.ID, m.Namespace)
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "remove <courseKey> <subsection>",
		Short: "Remove a prerequisite and every requirement on it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			if err := core.Gating.RemovePrerequisite(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "list <courseKey>",
		Short: "List prerequisite subsections of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			prereqs, err := core.Gating.GetPrerequisites(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MILESTONE\tSUBSECTION\tNAME")
			for _, p := range prereqs {
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.MilestoneID, p.BlockUsageKey, p.BlockDisplayName)
			}
			return w.Flush()
		},
	})
	return c
}
