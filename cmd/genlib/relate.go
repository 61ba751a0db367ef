package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/application/handlers"
)

func newRelateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relate <a> <relation> <b>",
		Short: "Create a relationship between two persons",
		Long: fmt.Sprintf(`Records that <b> is the <relation> of <a>. Persons are given by id or
directory name.

Valid relations: %s (also father, mother, son, daughter, husband, wife,
brother and sister).

Examples:
  genlib relate karl_svensson parent erik_svensson
  genlib relate 12 spouse 14`, strings.Join(handlers.ValidRelations, ", ")),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(deps *Deps) error {
				rel, err := deps.Relationships.HandleCreate(ctx, args[0], args[1], args[2])
				if err != nil {
					return fmt.Errorf("creating relationship: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s relationship %d between %d and %d\n",
					rel.Category, rel.ID, rel.LowID, rel.HighID)
				return nil
			})
		},
	}

	return cmd
}
