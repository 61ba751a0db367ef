package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/application/handlers"
	"github.com/carleson/genlib/internal/domain/services"
)

type importFlags struct {
	format  string
	source  string
	dryRun  bool
	index   bool
	preview bool
	quiet   bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import persons and families from a GEDCOM or JSON file",
		Long: `Imports a genealogy file into the selected archive in one transaction.
Re-importing the same file creates nothing new: persons are matched by source
and cross-reference.

Examples:
  genlib import family.ged
  genlib import family.ged --preview
  genlib import export.json --source myheritage --index`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (gedcom, json, auto)")
	cmd.Flags().StringVar(&flags.source, "source", "", "Namespace for cross-references (default from config)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Run the import and roll it back")
	cmd.Flags().BoolVar(&flags.index, "index", false, "Index persons for similarity search afterwards")
	cmd.Flags().BoolVar(&flags.preview, "preview", false, "Show what the import would do without running it")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Do not show progress")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(deps *Deps) error {
		source := flags.source
		if source == "" {
			source = deps.Config.Import.DefaultSource
		}
		opts := handlers.ImportOptions{
			Format:        flags.format,
			Source:        source,
			DryRun:        flags.dryRun,
			Index:         flags.index,
			ProgressEvery: deps.Config.Import.ProgressEvery,
		}

		if flags.preview {
			preview, err := deps.Imports.HandlePreview(ctx, filePath, opts)
			if err != nil {
				return err
			}
			printPreview(out, preview)
			return nil
		}

		if !flags.quiet {
			errOut := cmd.ErrOrStderr()
			opts.OnProgress = func(p services.ImportProgress) {
				fmt.Fprintf(errOut, "\r%d/%d records, %d persons, %d relationships",
					p.RecordsProcessed, p.TotalRecords, p.PersonsCreated, p.RelationshipsCreated)
			}
		}

		fmt.Fprintf(out, "Importing %s into archive %q...\n", filePath, deps.Archive)
		result, err := deps.Imports.Handle(ctx, filePath, opts)
		if !flags.quiet {
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		if result != nil {
			printImportReport(out, result.Report)
			if result.Index != nil {
				fmt.Fprintf(out, "Indexed %d persons for search (%d skipped)\n", result.Index.Indexed, result.Index.Skipped)
			}
		}
		if errors.Is(err, services.ErrImportCancelled) {
			return fmt.Errorf("%w (the records listed above were kept)", err)
		}
		return err
	})
}

func printImportReport(w io.Writer, r *services.ImportReport) {
	if r == nil {
		return
	}

	switch {
	case r.DryRun:
		fmt.Fprintln(w, "Dry run, nothing was saved:")
	case r.Partial:
		fmt.Fprintln(w, "Import cancelled, partial result:")
	default:
		fmt.Fprintln(w, "Import complete:")
	}

	fmt.Fprintf(w, "  Records processed:     %d of %d\n", r.RecordsProcessed, r.TotalRecords)
	fmt.Fprintf(w, "  Persons created:       %d\n", r.PersonsCreated)
	if r.PlaceholdersFilled > 0 {
		fmt.Fprintf(w, "  Placeholders filled:   %d\n", r.PlaceholdersFilled)
	}
	fmt.Fprintf(w, "  Relationships created: %d\n", r.RelationshipsCreated)
	fmt.Fprintf(w, "  Duplicates skipped:    %d\n", r.DuplicatesSkipped)
	fmt.Fprintf(w, "  Unresolved references: %d\n", r.UnresolvedReferences)

	if len(r.Issues) > 0 {
		fmt.Fprintf(w, "\nIssues (%d):\n", len(r.Issues))
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  line %d: %s %s: %s\n", issue.Line, issue.Kind, issue.Ref, issue.Message)
		}
	}
}

func printPreview(w io.Writer, p *services.ImportPreview) {
	fmt.Fprintln(w, "Import preview:")
	fmt.Fprintf(w, "  Individuals:            %d\n", p.Individuals)
	fmt.Fprintf(w, "  Families:               %d\n", p.Families)
	fmt.Fprintf(w, "  New persons:            %d\n", p.NewPersons)
	fmt.Fprintf(w, "  Already imported:       %d\n", p.ExistingPersons)
	fmt.Fprintf(w, "  Duplicate definitions:  %d\n", p.DuplicateDefinitions)
	fmt.Fprintf(w, "  Relationships (approx): %d\n", p.EstimatedRelationships)

	if len(p.Samples) > 0 {
		fmt.Fprintln(w, "\nSample:")
		for _, s := range p.Samples {
			state := "new"
			if s.Exists {
				state = "exists"
			}
			fmt.Fprintf(w, "  %-8s %-30s %-12s %s\n", s.XRef, s.Name, s.Lifespan, state)
		}
	}
}
