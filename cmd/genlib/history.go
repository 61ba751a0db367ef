package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent imports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(deps *Deps) error {
				runs, err := deps.Persons.HandleHistory(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No imports yet.")
					return nil
				}
				fmt.Fprintf(out, "%-20s %-12s %-24s %-10s %8s %8s %8s\n",
					"STARTED", "SOURCE", "FILE", "STATUS", "PERSONS", "RELS", "DUPS")
				for _, r := range runs {
					fmt.Fprintf(out, "%-20s %-12s %-24s %-10s %8d %8d %8d\n",
						r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Source, r.FileName, r.Status,
						r.PersonsCreated, r.RelationshipsCreated, r.DuplicatesSkipped)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", DefaultHistoryLimit, "Maximum number of imports")

	return cmd
}
