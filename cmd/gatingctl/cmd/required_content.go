package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRequiredContentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "required-content",
		Short: "Set or show the prerequisite gating a subsection",
	}

	set := &cobra.Command{
		Use:   "set <courseKey> <gatedSubsection> [prereqSubsection]",
		Short: "Gate a subsection behind a prerequisite; omit the prerequisite to clear",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			prereq := ""
			if len(args) == 3 {
				prereq = args[2]
			}
			var minScore *int
			if cmd.Flags().Changed("min-score") {
				v, _ := cmd.Flags().GetInt("min-score")
				minScore = &v
			}
			if err := core.Gating.SetRequiredContent(cmd.Context(), args[0], args[1], prereq, minScore); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	set.Flags().Int("min-score", 100, "Minimum percentage on the prerequisite (0-100)")

	get := &cobra.Command{
		Use:   "get <courseKey> <gatedSubsection>",
		Short: "Show the prerequisite and minimum score of a subsection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := openCore(cmd)
			if err != nil {
				return err
			}
			defer core.Close()

			prereq, minScore, err := core.Gating.GetRequiredContent(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if prereq == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "not gated")
				return nil
			}
			score := "unset"
			if minScore != nil {
				score = fmt.Sprintf("%d", *minScore)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s min_score=%s\n", prereq, score)
			return nil
		},
	}

	c.AddCommand(set, get)
	return c
}
