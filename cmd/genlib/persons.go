package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/application/handlers"
	"github.com/carleson/genlib/internal/domain/entities"
)

type personsFlags struct {
	search string
	limit  int
	offset int
	json   bool
}

func newPersonsCmd() *cobra.Command {
	var flags personsFlags

	cmd := &cobra.Command{
		Use:   "persons",
		Short: "List, search, show and add persons",
		Long: `Lists the persons of the archive, or searches them by name.

Examples:
  genlib persons
  genlib persons --search svensson
  genlib persons show anna_svensson
  genlib persons add --given Anna --surname Svensson --birth "ABT 1850"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersonsList(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.search, "search", "s", "", "Filter by name")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", DefaultListLimit, "Maximum number of persons")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Number of persons to skip")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Output JSON")

	cmd.AddCommand(
		newPersonsShowCmd(),
		newPersonsAddCmd(),
		newPersonsBookmarkCmd(),
	)

	return cmd
}

func runPersonsList(cmd *cobra.Command, flags personsFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(deps *Deps) error {
		result, err := deps.Persons.HandleList(ctx, handlers.PersonListOptions{
			Search: flags.search,
			Limit:  flags.limit,
			Offset: flags.offset,
		})
		if err != nil {
			return fmt.Errorf("listing persons: %w", err)
		}

		if flags.json {
			return printJSON(out, result)
		}
		if len(result.Persons) == 0 {
			fmt.Fprintln(out, "No persons found.")
			return nil
		}
		printPersons(out, result.Persons)
		fmt.Fprintf(out, "\n%d of %d persons\n", len(result.Persons), result.Total)
		return nil
	})
}

func printPersons(w io.Writer, persons []*entities.Person) {
	fmt.Fprintf(w, "  %-6s %-28s %-30s %s\n", "ID", "DIRECTORY", "NAME", "LIFESPAN")
	for _, p := range persons {
		marker := " "
		if p.Bookmarked {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-6d %-28s %-30s %s\n", marker, p.ID, p.DirectoryName, p.DisplayName(), p.Lifespan())
	}
}

func newPersonsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a person and their relatives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return withDeps(ctx, func(deps *Deps) error {
				details, err := deps.Persons.HandleShow(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, details)
				}
				printPersonDetails(out, details)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func printPersonDetails(w io.Writer, d *handlers.PersonDetails) {
	p := d.Person
	fmt.Fprintf(w, "%s (%s)\n", p.DisplayName(), p.DirectoryName)
	fmt.Fprintf(w, "  ID:    %d\n", p.ID)
	fmt.Fprintf(w, "  Sex:   %s\n", p.Sex)
	if !p.Birth.IsEmpty() || p.BirthPlace != "" {
		fmt.Fprintf(w, "  Born:  %s %s\n", p.Birth, p.BirthPlace)
	}
	if !p.Death.IsEmpty() || p.DeathPlace != "" {
		fmt.Fprintf(w, "  Died:  %s %s\n", p.Death, p.DeathPlace)
	}
	if p.Placeholder {
		fmt.Fprintln(w, "  (placeholder created for an unresolved reference)")
	}
	if p.ExternalID != "" {
		fmt.Fprintf(w, "  From:  %s %s\n", p.ExternalSource, p.ExternalID)
	}
	if p.Notes != "" {
		fmt.Fprintf(w, "  Notes: %s\n", p.Notes)
	}

	if len(d.Relatives) > 0 {
		fmt.Fprintln(w, "\nRelatives:")
		for _, r := range d.Relatives {
			inferred := ""
			if r.Inferred {
				inferred = " (via parent)"
			}
			fmt.Fprintf(w, "  %-8s %s%s\n", r.Kinship, r.Person.DisplayName(), inferred)
		}
	}
}

func newPersonsAddCmd() *cobra.Command {
	var opts handlers.AddPersonOptions

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(deps *Deps) error {
				p, err := deps.Persons.HandleAdd(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s (id %d)\n", p.DisplayName(), p.DirectoryName, p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.GivenName, "given", "", "Given name")
	cmd.Flags().StringVar(&opts.Surname, "surname", "", "Surname")
	cmd.Flags().StringVar(&opts.Sex, "sex", "", "Sex (M, F)")
	cmd.Flags().StringVar(&opts.Birth, "birth", "", `Birth date, e.g. "12 MAR 1850" or "ABT 1850"`)
	cmd.Flags().StringVar(&opts.BirthPlace, "birth-place", "", "Birth place")
	cmd.Flags().StringVar(&opts.Death, "death", "", "Death date")
	cmd.Flags().StringVar(&opts.DeathPlace, "death-place", "", "Death place")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Notes")

	return cmd
}

func newPersonsBookmarkCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "bookmark <ref>",
		Short: "Bookmark a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(deps *Deps) error {
				p, err := deps.Persons.HandleBookmark(ctx, args[0], !off)
				if err != nil {
					return err
				}
				state := "Bookmarked"
				if off {
					state = "Removed bookmark from"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, p.DisplayName())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "Remove the bookmark")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
