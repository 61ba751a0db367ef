package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carleson/genlib/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new genlib archive directory",
		Long:  "Creates a .genlib directory with default configuration and the default archive.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	archives, cwd, err := newArchiveHandler()
	if err != nil {
		return err
	}

	result, err := handlers.NewInitHandler(archives).Handle(cmd.Context(), cwd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", result.ConfigPath)
	fmt.Fprintf(out, "Created archive %q in %s\n", result.Archive.Name, result.Archive.Path)
	fmt.Fprintln(out, "Import a file with 'genlib import FILE.ged'.")
	return nil
}
