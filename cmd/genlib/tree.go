package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/domain/entities"
)

type treeFlags struct {
	generations int
	format      string
}

func newTreeCmd() *cobra.Command {
	var flags treeFlags

	cmd := &cobra.Command{
		Use:   "tree <ref>",
		Short: "Show the family tree around a person",
		Long: `Builds the family tree of a person: ancestors and descendants up to
--generations away, with the siblings and spouses along the way.

Examples:
  genlib tree karl_svensson
  genlib tree 12 --generations 5 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.generations, "generations", "g", 0, "Generations to include, 1-5 (default from config)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "Output format: "+strings.Join(validTreeFormats, ", "))

	return cmd
}

func runTree(cmd *cobra.Command, ref string, flags treeFlags) error {
	if !slices.Contains(validTreeFormats, flags.format) {
		return fmt.Errorf("invalid format: %s (valid: %s)", flags.format, strings.Join(validTreeFormats, ", "))
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(deps *Deps) error {
		tree, err := deps.Trees.Handle(ctx, ref, flags.generations)
		if err != nil {
			return fmt.Errorf("building tree: %w", err)
		}
		if flags.format == "json" {
			return printJSON(out, tree)
		}
		renderTree(out, tree)
		return nil
	})
}

// renderTree prints a tree one generation per block, oldest first.
func renderTree(w io.Writer, tree *entities.FamilyTree) {
	root := tree.Node(tree.RootID)
	if root == nil {
		return
	}
	fmt.Fprintf(w, "Family tree of %s (%d generations)\n", nodeName(root), tree.MaxGenerations)

	var gens []int
	for _, n := range tree.Nodes {
		if !slices.Contains(gens, n.Generation) {
			gens = append(gens, n.Generation)
		}
	}
	slices.Sort(gens)

	for _, gen := range gens {
		fmt.Fprintf(w, "\n%s\n", generationLabel(gen))
		for _, n := range tree.Generation(gen) {
			fmt.Fprintf(w, "  %-34s %-11s %s\n", nodeName(&n), n.Role, spousesOf(tree, n.PersonID))
		}
	}

	if len(tree.Anomalies) > 0 {
		fmt.Fprintln(w, "\nAnomalies:")
		for _, a := range tree.Anomalies {
			fmt.Fprintf(w, "  %s: %s reached again via %s\n", a.Kind, nameOf(tree, a.PersonID), nameOf(tree, a.ViaID))
		}
	}
}

func generationLabel(gen int) string {
	switch gen {
	case -2:
		return "Grandparents"
	case -1:
		return "Parents"
	case 0:
		return "Root generation"
	case 1:
		return "Children"
	case 2:
		return "Grandchildren"
	}
	if gen < 0 {
		return fmt.Sprintf("Ancestors, %d generations up", -gen)
	}
	return fmt.Sprintf("Descendants, %d generations down", gen)
}

func nodeName(n *entities.TreeNode) string {
	if n.Person == nil {
		return fmt.Sprintf("#%d", n.PersonID)
	}
	name := n.Person.DisplayName()
	if lifespan := n.Person.Lifespan(); lifespan != "" {
		name += " (" + lifespan + ")"
	}
	return name
}

func nameOf(tree *entities.FamilyTree, id int64) string {
	if n := tree.Node(id); n != nil {
		return nodeName(n)
	}
	return fmt.Sprintf("#%d", id)
}

// spousesOf returns "m. A, B" for the spouses of id within the tree.
func spousesOf(tree *entities.FamilyTree, id int64) string {
	var names []string
	for _, l := range tree.Links {
		if l.Kind != entities.LinkSpousal {
			continue
		}
		switch id {
		case l.From:
			names = append(names, nameOf(tree, l.To))
		case l.To:
			names = append(names, nameOf(tree, l.From))
		}
	}
	if len(names) == 0 {
		return ""
	}
	return "m. " + strings.Join(names, ", ")
}
