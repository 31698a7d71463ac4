package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"plantit/internal/app"
	"plantit/internal/garden"
	"plantit/internal/importer"
	"plantit/internal/legacy"
)

type importFlags struct {
	village        string
	newVillage     string
	climate        string
	dryRun         bool
	skipActivities bool
	skipSchedules  bool
}

func importCommand(e *env) *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import one plant from a legacy JSON export",
		Long: `Import reads a legacy plant export, shows what it found (including any
keys it did not recognise) and saves the plant with its history in one step.

The plant's village is, in order: --village, the village the export already
matched, --new-village, then the village named in the export.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			return runImport(cmd, core, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.village, "village", "", "Attach the plant to an existing village (id or name)")
	cmd.Flags().StringVar(&f.newVillage, "new-village", "", "Attach to this village, creating it if needed")
	cmd.Flags().StringVar(&f.climate, "climate", "", "Climate for a village created by --new-village")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show the draft without saving")
	cmd.Flags().BoolVar(&f.skipActivities, "skip-activities", false, "Do not import the activity history")
	cmd.Flags().BoolVar(&f.skipSchedules, "skip-schedules", false, "Do not import schedules")
	return cmd
}

func runImport(cmd *cobra.Command, core *app.Core, path string, f importFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	d, err := core.Importer.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	printDraft(out, core, d)
	if f.dryRun {
		return nil
	}

	if f.skipActivities {
		d.RetainActivities(func(int, garden.Activity) bool { return false })
	}
	if f.skipSchedules {
		d.RetainSchedules(func(int, garden.Schedule) bool { return false })
	}

	var opt importer.CommitOptions
	if strings.TrimSpace(f.village) != "" {
		v, err := core.Repo.ResolveVillage(ctx, f.village)
		if err != nil {
			return err
		}
		opt.SelectedVillage = &v
	}
	if name := strings.TrimSpace(f.newVillage); name != "" {
		opt.NewVillageName = name
		if f.climate != "" {
			c, ok := garden.ParseClimate(f.climate)
			if !ok {
				return fmt.Errorf("unknown climate %q", f.climate)
			}
			opt.NewVillageClimate = c
		}
	}

	res, err := core.Importer.Commit(ctx, d, opt)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Summary())
	return nil
}

func printDraft(w io.Writer, core *app.Core, d *legacy.Draft) {
	fmt.Fprintf(w, "Plant:      %s\n", d.Plant.Name)
	if d.Plant.Species != "" {
		fmt.Fprintf(w, "Species:    %s\n", d.Plant.Species)
	}
	fmt.Fprintf(w, "Activities: %d\n", len(d.Activities))
	fmt.Fprintf(w, "Schedules:  %d\n", len(d.Schedules))
	for _, s := range d.Schedules {
		fmt.Fprintf(w, "  - %s\n", s.Kind.DisplayName()+", "+core.Calendar.Describe(s.Policy())+", next "+formatWhen(core, s.NextDueAt))
	}
	if d.PendingVillage != nil {
		fmt.Fprintf(w, "Village:    %s (new, %s)\n", d.PendingVillage.Name, d.PendingVillage.Climate.DisplayName())
	}
	if n := d.TotalUnknownFieldCount(); n > 0 {
		fmt.Fprintf(w, "Unrecognised fields: %d\n", n)
		for _, g := range d.UnknownGroups() {
			fields := d.UnknownFields[g]
			pairs := make([]string, 0, len(fields))
			for k, v := range fields {
				pairs = append(pairs, k+"="+v)
			}
			slices.Sort(pairs)
			fmt.Fprintf(w, "  %s: %s\n", g, strings.Join(pairs, ", "))
		}
	}
}
