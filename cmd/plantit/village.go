package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantit/internal/garden"
)

func villageCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "village",
		Aliases: []string{"villages"},
		Short:   "Manage villages (groups of plants sharing a climate)",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List villages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			vs, err := core.Repo.Villages(cmd.Context())
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tCLIMATE")
			for _, v := range vs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, v.Climate.DisplayName())
			}
			return tw.Flush()
		},
	}

	var climate string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a village",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseClimate(climate)
			if err != nil {
				return err
			}
			core, err := e.open()
			if err != nil {
				return err
			}
			v, err := core.Repo.CreateVillage(cmd.Context(), args[0], c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created village %q (%s)\n", v.Name, v.ID)
			return nil
		},
	}
	add.Flags().StringVar(&climate, "climate", "", "tropical, arid, temperate, continental or polar")

	var renameClimate string
	rename := &cobra.Command{
		Use:   "rename <village> <new-name>",
		Short: "Rename a village and optionally change its climate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseClimate(renameClimate)
			if err != nil {
				return err
			}
			core, err := e.open()
			if err != nil {
				return err
			}
			v, err := core.Repo.ResolveVillage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			v, err = core.Repo.UpdateVillage(cmd.Context(), v.ID, args[1], c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Village is now %q (%s)\n", v.Name, v.Climate.DisplayName())
			return nil
		},
	}
	rename.Flags().StringVar(&renameClimate, "climate", "", "New climate (unchanged when empty)")

	del := &cobra.Command{
		Use:   "delete <village>",
		Short: "Delete a village; its plants are kept without one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			v, err := core.Repo.ResolveVillage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := core.Repo.DeleteVillage(cmd.Context(), v.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted village %q\n", v.Name)
			return nil
		},
	}

	cmd.AddCommand(list, add, rename, del)
	return cmd
}

// parseClimate maps an empty flag to "" so callers keep their default.
func parseClimate(raw string) (garden.Climate, error) {
	if raw == "" {
		return "", nil
	}
	c, ok := garden.ParseClimate(raw)
	if !ok {
		return "", fmt.Errorf("unknown climate %q", raw)
	}
	return c, nil
}
