package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/application/handlers"
)

type relationsFlags struct {
	category string
	format   string
}

func newRelationsCmd() *cobra.Command {
	var flags relationsFlags

	cmd := &cobra.Command{
		Use:   "relations <ref>",
		Short: "List the relatives of a person",
		Long: `Shows parents, spouses, siblings and children of a person. Siblings
include those inferred through a shared parent.

Examples:
  genlib relations karl_svensson
  genlib relations 12 --category spouse
  genlib relations karl_svensson --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelations(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.category, "category", "c", "", "Filter by category (parent_child, spouse, sibling)")
	cmd.Flags().StringVar(&flags.format, "format", "tree", "Output format: "+strings.Join(validRelationsFormats, ", "))

	return cmd
}

func runRelations(cmd *cobra.Command, ref string, flags relationsFlags) error {
	if !slices.Contains(validRelationsFormats, flags.format) {
		return fmt.Errorf("invalid format: %s (valid: %s)", flags.format, strings.Join(validRelationsFormats, ", "))
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(deps *Deps) error {
		result, err := deps.Relationships.HandleList(ctx, ref, handlers.ListOptions{Category: flags.category})
		if err != nil {
			return fmt.Errorf("listing relationships: %w", err)
		}

		if flags.format == "json" {
			return printJSON(out, result)
		}
		if len(result.Relatives) == 0 {
			fmt.Fprintf(out, "No relatives found for %s\n", result.Person.DisplayName())
			return nil
		}
		if flags.format == "list" {
			printRelationsList(out, result)
			return nil
		}
		printRelationsTree(out, result)
		return nil
	})
}

func printRelationsList(w io.Writer, result *handlers.ListResult) {
	name := result.Person.DisplayName()
	fmt.Fprintf(w, "Relatives of %s:\n", name)
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for _, r := range result.Relatives {
		note := ""
		if r.Inferred {
			note = " (inferred)"
		}
		fmt.Fprintf(w, "%s is the %s of %s%s\n", r.Person.DisplayName(), r.Kinship, name, note)
	}
}

func printRelationsTree(w io.Writer, result *handlers.ListResult) {
	fmt.Fprintf(w, "%s\n", result.Person.DisplayName())

	for i, r := range result.Relatives {
		prefix := "+-"
		if i == len(result.Relatives)-1 {
			prefix = "\\-"
		}

		suffix := ""
		if lifespan := r.Person.Lifespan(); lifespan != "" {
			suffix = " (" + lifespan + ")"
		}
		if r.Inferred {
			suffix += " *"
		}

		fmt.Fprintf(w, "%s %s -> %s%s\n", prefix, r.Kinship, r.Person.DisplayName(), suffix)
	}
}
