package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArchivesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archives",
		Short: "Manage archives",
		RunE:  runArchivesList,
	}

	cmd.AddCommand(
		newArchivesListCmd(),
		newArchivesCreateCmd(),
		newArchivesDeleteCmd(),
	)

	return cmd
}

func newArchivesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all archives",
		RunE:  runArchivesList,
	}
}

func runArchivesList(cmd *cobra.Command, args []string) error {
	archives, cwd, err := newArchiveHandler()
	if err != nil {
		return err
	}

	list, err := archives.List(cwd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No archives configured.")
		fmt.Fprintln(out, "Use 'genlib archives create NAME' to create an archive.")
		return nil
	}

	fmt.Fprintf(out, "  %-20s %-28s %s\n", "NAME", "COLLECTION", "DESCRIPTION")
	fmt.Fprintf(out, "  %-20s %-28s %s\n", "----", "----------", "-----------")
	for _, a := range list {
		marker := " "
		if a.Default {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-20s %-28s %s\n", marker, a.Name, a.Collection, a.Description)
	}

	return nil
}

func newArchivesCreateCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archives, cwd, err := newArchiveHandler()
			if err != nil {
				return err
			}
			info, err := archives.Create(cmd.Context(), cwd, args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created archive %q with collection %q\n", info.Name, info.Collection)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Archive description")

	return cmd
}

func newArchivesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an archive and its database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archives, cwd, err := newArchiveHandler()
			if err != nil {
				return err
			}
			if err := archives.Delete(cmd.Context(), cwd, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted archive %q\n", args[0])
			return nil
		},
	}
}
