package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plantit/internal/app"
	"plantit/internal/garden"
	"plantit/internal/repository"
)

func plantCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plant",
		Aliases: []string{"plants"},
		Short:   "Manage plants and log their care",
	}
	cmd.AddCommand(
		plantListCommand(e),
		plantAddCommand(e),
		plantShowCommand(e),
		plantDeleteCommand(e),
		careCommand(e, "water", garden.ActivityWater, "Log a watering (completes the watering schedule)"),
		careCommand(e, "fertilize", garden.ActivityFertilize, "Log a fertilizing (completes the fertilizing schedule)"),
		plantNoteCommand(e),
		plantPhotoCommand(e),
	)
	return cmd
}

func plantListCommand(e *env) *cobra.Command {
	var village string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			villageID := ""
			if village != "" {
				v, err := core.Repo.ResolveVillage(ctx, village)
				if err != nil {
					return err
				}
				villageID = v.ID
			}
			plants, err := core.Repo.Plants(ctx, villageID)
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSPECIES\tLAST WATERED")
			for _, p := range plants {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Species, formatWhen(core, p.LastWateredAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&village, "village", "", "Only plants in this village (id or name)")
	return cmd
}

func plantAddCommand(e *env) *cobra.Command {
	var (
		in         repository.PlantInput
		village    string
		waterEvery int
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a plant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			in.Name = args[0]
			if village != "" {
				v, err := core.Repo.ResolveVillage(ctx, village)
				if err != nil {
					return err
				}
				in.VillageID = v.ID
			}
			if cmd.Flags().Changed("water-every") {
				in.WateringFrequencyInDays = &waterEvery
			}
			p, err := core.Repo.CreatePlant(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created plant %q (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Species, "species", "", "Species")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&village, "village", "", "Village (id or name)")
	cmd.Flags().IntVar(&waterEvery, "water-every", 0, "Create a watering schedule every N days")
	return cmd
}

func plantShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plant>",
		Short: "Show a plant with its schedules, history and photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			return showPlant(cmd, core, args[0])
		},
	}
}

func showPlant(cmd *cobra.Command, core *app.Core, ref string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	p, err := core.Repo.ResolvePlant(ctx, ref)
	if err != nil {
		return err
	}
	scheds, err := core.Repo.Schedules(ctx, p.ID)
	if err != nil {
		return err
	}
	acts, err := core.Repo.Activities(ctx, p.ID)
	if err != nil {
		return err
	}
	photos, err := core.Repo.Photos(ctx, p.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
	if p.Species != "" {
		fmt.Fprintf(w, "Species:      %s\n", p.Species)
	}
	if p.VillageID != "" {
		if v, err := core.Repo.ResolveVillage(ctx, p.VillageID); err == nil {
			fmt.Fprintf(w, "Village:      %s (%s)\n", v.Name, v.Climate.DisplayName())
		}
	}
	if p.Notes != "" {
		fmt.Fprintf(w, "Notes:        %s\n", p.Notes)
	}
	fmt.Fprintf(w, "Added:        %s\n", formatWhen(core, &p.CreatedAt))
	fmt.Fprintf(w, "Last watered: %s\n", formatWhen(core, p.LastWateredAt))

	if len(scheds) > 0 {
		fmt.Fprintln(w, "\nSchedules:")
		tw := table(w)
		for _, s := range scheds {
			fmt.Fprintf(tw, "  %s\t%s\t%s\tnext %s\n", s.ID, s.Kind.DisplayName(), core.Calendar.Describe(s.Policy()), formatWhen(core, s.NextDueAt))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(acts) > 0 {
		fmt.Fprintln(w, "\nHistory:")
		for _, a := range acts {
			line := "  " + formatWhen(core, &a.CreatedAt) + "  " + a.Kind.DisplayName()
			if a.Note != "" {
				line += ": " + a.Note
			}
			fmt.Fprintln(w, line)
		}
	}
	if len(photos) > 0 {
		fmt.Fprintln(w, "\nPhotos:")
		for _, ph := range photos {
			fmt.Fprintf(w, "  %s  [%s] %s\n", formatWhen(core, &ph.CreatedAt), ph.Symbol, ph.Caption)
		}
	}
	return nil
}

func plantDeleteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plant>",
		Short: "Delete a plant with its history, schedules and photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			p, err := core.Repo.ResolvePlant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := core.Repo.DeletePlant(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted plant %q\n", p.Name)
			return nil
		},
	}
}

func careCommand(e *env, use string, kind garden.ActivityKind, short string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   use + " <plant>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			return recordCare(cmd, core, args[0], kind, note)
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Optional note")
	return cmd
}

func plantNoteCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "note <plant> <text>...",
		Short: "Add a note to a plant's history",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			return recordCare(cmd, core, args[0], garden.ActivityNote, strings.Join(args[1:], " "))
		},
	}
}

func recordCare(cmd *cobra.Command, core *app.Core, ref string, kind garden.ActivityKind, note string) error {
	ctx := cmd.Context()
	p, err := core.Repo.ResolvePlant(ctx, ref)
	if err != nil {
		return err
	}
	a, err := core.Repo.RecordActivity(ctx, p.ID, kind, note)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s at %s\n", p.Name, a.Kind.DisplayName(), formatWhen(core, &a.CreatedAt))
	return nil
}

func plantPhotoCommand(e *env) *cobra.Command {
	var caption, symbol string
	cmd := &cobra.Command{
		Use:   "photo <plant>",
		Short: "Add a placeholder photo entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			p, err := core.Repo.ResolvePlant(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ph, err := core.Repo.AddPhoto(cmd.Context(), p.ID, caption, symbol)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added photo %s to %q\n", ph.ID, p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Caption")
	cmd.Flags().StringVar(&symbol, "symbol", "", "Icon name (default leaf)")
	return cmd
}
