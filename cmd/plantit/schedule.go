package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	"plantit/internal/reminder"
)

type cadenceFlags struct {
	kind       string
	cadence    string
	every      int
	weekday    int
	dayOfMonth int
}

func (f *cadenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "watering", "watering, fertilizing or custom")
	cmd.Flags().StringVar(&f.cadence, "cadence", string(cadence.EveryNDays), "everyNDays, dayOfWeek or dayOfMonth")
	cmd.Flags().IntVar(&f.every, "every", garden.DefaultFrequencyInDays, "Days between care (everyNDays)")
	cmd.Flags().IntVar(&f.weekday, "weekday", 0, "Weekday 1-7 counted from the configured first weekday (dayOfWeek)")
	cmd.Flags().IntVar(&f.dayOfMonth, "day", 0, "Day of month 1-31, clamped to short months (dayOfMonth)")
}

func (f *cadenceFlags) spec(plantID string) (garden.ScheduleSpec, error) {
	kind, ok := garden.ParseScheduleKind(f.kind)
	if !ok {
		return garden.ScheduleSpec{}, fmt.Errorf("unknown schedule kind %q", f.kind)
	}
	ck, err := parseCadence(f.cadence)
	if err != nil {
		return garden.ScheduleSpec{}, err
	}
	return garden.ScheduleSpec{
		PlantID:         plantID,
		Kind:            kind,
		Cadence:         ck,
		FrequencyInDays: f.every,
		Weekday:         f.weekday,
		DayOfMonth:      f.dayOfMonth,
	}, nil
}

func parseCadence(raw string) (cadence.Kind, error) {
	for _, k := range cadence.Kinds() {
		if strings.EqualFold(string(k), strings.TrimSpace(raw)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown cadence %q", raw)
}

func scheduleCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"schedules"},
		Short:   "Manage care schedules",
	}

	var within time.Duration
	upcoming := &cobra.Command{
		Use:   "upcoming",
		Short: "List care that is due soon (overdue included)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			due, err := core.Repo.Upcoming(ctx, within)
			if err != nil {
				return err
			}
			if len(due) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing due.")
				return nil
			}
			plants, err := core.Repo.Plants(ctx, "")
			if err != nil {
				return err
			}
			names := make(map[string]string, len(plants))
			for _, p := range plants {
				names[p.ID] = p.Name
			}
			tw := table(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tPLANT\tKIND\tDUE")
			for _, s := range due {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, names[s.PlantID], s.Kind.DisplayName(), formatWhen(core, s.NextDueAt))
			}
			return tw.Flush()
		},
	}
	upcoming.Flags().DurationVar(&within, "within", 24*time.Hour, "Window from now")

	var addFlags cadenceFlags
	add := &cobra.Command{
		Use:   "add <plant>",
		Short: "Add a schedule to a plant",
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
			spec, err := addFlags.spec(p.ID)
			if err != nil {
				return err
			}
			s, err := core.Repo.AddSchedule(cmd.Context(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s schedule %s for %q: %s\n", strings.ToLower(s.Kind.DisplayName()), s.ID, p.Name, reminder.Body(core.Calendar, s))
			return nil
		},
	}
	addFlags.register(add)

	complete := &cobra.Command{
		Use:   "complete <schedule-id>",
		Short: "Mark a schedule done now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			s, err := core.Repo.CompleteSchedule(cmd.Context(), args[0], time.Time{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done. Next due %s\n", formatWhen(core, s.NextDueAt))
			return nil
		},
	}

	var snoozeFor time.Duration
	snooze := &cobra.Command{
		Use:   "snooze <schedule-id>",
		Short: "Push a schedule's due date back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			s, err := core.Repo.SnoozeSchedule(cmd.Context(), args[0], snoozeFor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snoozed. Next due %s\n", formatWhen(core, s.NextDueAt))
			return nil
		},
	}
	snooze.Flags().DurationVar(&snoozeFor, "for", 0, "Snooze interval (configured default when 0)")

	var (
		previewFlags cadenceFlags
		count        int
	)
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the next due dates a cadence would produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			spec, err := previewFlags.spec("")
			if err != nil {
				return err
			}
			dates, err := core.Repo.Preview(spec, count)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, core.Calendar.Describe(cadence.Policy{Kind: spec.Cadence, FrequencyInDays: spec.FrequencyInDays, Weekday: spec.Weekday, DayOfMonth: spec.DayOfMonth}))
			for _, d := range dates {
				fmt.Fprintln(w, "  "+formatWhen(core, &d))
			}
			return nil
		},
	}
	previewFlags.register(preview)
	preview.Flags().IntVarP(&count, "count", "n", 5, "Number of dates")

	del := &cobra.Command{
		Use:   "delete <schedule-id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := e.open()
			if err != nil {
				return err
			}
			if err := core.Repo.DeleteSchedule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted schedule", args[0])
			return nil
		},
	}

	cmd.AddCommand(upcoming, add, complete, snooze, preview, del)
	return cmd
}
