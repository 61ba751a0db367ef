package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index all persons for similarity search",
		Long:  "Embeds a short description of every person and stores it in the archive's Qdrant collection. Requires an embedder API key.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withInternalDeps(ctx, func(d *internalDeps) error {
				report, err := d.Search.HandleIndex(ctx)
				if err != nil {
					return fmt.Errorf("indexing: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Indexed %d persons in %d batches (%d placeholders skipped)\n",
					report.Indexed, report.Batches, report.Skipped)
				if d.index != nil {
					if count, err := d.index.Count(ctx); err == nil {
						fmt.Fprintf(out, "Collection %s now holds %d persons\n", d.index.Collection(), count)
					}
				}
				return nil
			})
		},
	}
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find persons similar to a description",
		Long: `Searches the persons indexed with 'genlib index' by meaning.

Examples:
  genlib search "farmer born in Lund around 1850"
  genlib search "died young" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")
			return withDeps(ctx, func(deps *Deps) error {
				hits, err := deps.Search.HandleSearch(ctx, query, limit)
				if err != nil {
					return fmt.Errorf("searching: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(hits) == 0 {
					fmt.Fprintln(out, "No matches.")
					return nil
				}
				for _, h := range hits {
					fmt.Fprintf(out, "%.3f  %-28s %-30s %s\n", h.Score, h.Person.DirectoryName, h.Person.DisplayName(), h.Person.Lifespan())
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", DefaultSearchLimit, "Maximum number of results")

	return cmd
}
