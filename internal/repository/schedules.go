package repository

import (
	"context"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

func (r *Repository) Schedules(ctx context.Context, plantID string) ([]garden.Schedule, error) {
	return r.store.Schedules(ctx, storage.ScheduleFilter{PlantID: plantID})
}

func (r *Repository) Schedule(ctx context.Context, id string) (garden.Schedule, error) {
	s, err := r.store.Schedule(ctx, id)
	if err != nil {
		return garden.Schedule{}, notFound("schedule", id, err)
	}
	return s, nil
}

// Upcoming lists schedules due within the given window from now (overdue
// included), soonest first. A non-positive window lists only what is due now.
func (r *Repository) Upcoming(ctx context.Context, within time.Duration) ([]garden.Schedule, error) {
	until := r.now().Add(max(within, 0))
	return r.store.Schedules(ctx, storage.ScheduleFilter{DueBy: &until})
}

func validateSpec(spec garden.ScheduleSpec) error {
	if spec.Cadence != "" && !spec.Cadence.Valid() {
		return &InvalidError{Field: "cadence", Reason: "unknown cadence " + string(spec.Cadence)}
	}
	if spec.Kind != "" {
		if _, ok := garden.ParseScheduleKind(string(spec.Kind)); !ok {
			return &InvalidError{Field: "kind", Reason: "unknown schedule kind " + string(spec.Kind)}
		}
	}
	if spec.Weekday < 0 || spec.Weekday > 7 {
		return &InvalidError{Field: "weekday", Reason: "must be between 1 and 7"}
	}
	if spec.DayOfMonth < 0 || spec.DayOfMonth > 31 {
		return &InvalidError{Field: "day_of_month", Reason: "must be between 1 and 31"}
	}
	return nil
}

// AddSchedule creates a schedule for spec.PlantID. Any NextDueAt in spec is
// ignored; the due date always comes from the cadence.
func (r *Repository) AddSchedule(ctx context.Context, spec garden.ScheduleSpec) (garden.Schedule, error) {
	if err := validateSpec(spec); err != nil {
		return garden.Schedule{}, err
	}
	p, err := r.Plant(ctx, spec.PlantID)
	if err != nil {
		return garden.Schedule{}, err
	}
	spec.ID = ""
	spec.NextDueAt = nil
	s := garden.NewSchedule(r.cal, spec, r.now())
	s.Normalize()
	s.RecomputeNextDue(r.cal, r.now())

	if err := r.save(ctx, "add schedule", storage.NewChangeSet().PutSchedule(s)); err != nil {
		return garden.Schedule{}, err
	}
	r.arm(ctx, s, p.Name)
	r.log.Info("schedule added",
		logx.String("schedule_id", s.ID),
		logx.String("plant_id", p.ID),
		logx.String("cadence", r.cal.Describe(s.Policy())),
	)
	return s, nil
}

// SaveSchedule stores edits to an existing schedule. The due date is always
// recomputed from the cadence fields, so a hand-edited NextDueAt never
// reaches the store.
func (r *Repository) SaveSchedule(ctx context.Context, s garden.Schedule) (garden.Schedule, error) {
	spec := garden.ScheduleSpec{Kind: s.Kind, Cadence: s.Cadence, Weekday: s.Weekday, DayOfMonth: s.DayOfMonth}
	if err := validateSpec(spec); err != nil {
		return garden.Schedule{}, err
	}
	cur, err := r.Schedule(ctx, s.ID)
	if err != nil {
		return garden.Schedule{}, err
	}
	p, err := r.Plant(ctx, cur.PlantID)
	if err != nil {
		return garden.Schedule{}, err
	}

	s = s.Clone()
	s.PlantID = cur.PlantID
	if s.Kind == "" {
		s.Kind = garden.ScheduleCustom
	}
	if s.Cadence == "" {
		s.Cadence = cadence.EveryNDays
	}
	s.Normalize()
	s.RecomputeNextDue(r.cal, r.now())

	if err := r.save(ctx, "save schedule", storage.NewChangeSet().PutSchedule(s)); err != nil {
		return garden.Schedule{}, err
	}
	r.arm(ctx, s, p.Name)
	return s, nil
}

func (r *Repository) DeleteSchedule(ctx context.Context, id string) error {
	if _, err := r.Schedule(ctx, id); err != nil {
		return err
	}
	if err := r.save(ctx, "delete schedule", storage.NewChangeSet().Delete(storage.EntitySchedule, id)); err != nil {
		return err
	}
	r.sink.CancelReminder(ctx, id)
	return nil
}

// CompleteSchedule marks the schedule done at `at`. Watering and fertilizing
// schedules also record the matching activity (a water activity updates the
// plant's last-watered time); custom schedules are only marked completed.
func (r *Repository) CompleteSchedule(ctx context.Context, id string, at time.Time) (garden.Schedule, error) {
	s, err := r.Schedule(ctx, id)
	if err != nil {
		return garden.Schedule{}, err
	}
	p, err := r.Plant(ctx, s.PlantID)
	if err != nil {
		return garden.Schedule{}, err
	}
	if at.IsZero() {
		at = r.now()
	}

	var cs *storage.ChangeSet
	if kind, ok := s.Kind.DefaultActivityKind(); ok {
		_, cs = r.record(p, kind, "", at, &s)
	} else {
		s.MarkCompleted(r.cal, at)
		cs = storage.NewChangeSet().PutSchedule(s)
	}

	if err := r.save(ctx, "complete schedule", cs); err != nil {
		return garden.Schedule{}, err
	}
	r.arm(ctx, s, p.Name)
	r.log.Info("schedule completed", logx.String("schedule_id", s.ID), logx.String("plant", p.Name))
	return s, nil
}

// SnoozeSchedule pushes the due date by interval (the repository default when
// non-positive). Cadence fields and the last completion are untouched.
func (r *Repository) SnoozeSchedule(ctx context.Context, id string, interval time.Duration) (garden.Schedule, error) {
	s, err := r.Schedule(ctx, id)
	if err != nil {
		return garden.Schedule{}, err
	}
	p, err := r.Plant(ctx, s.PlantID)
	if err != nil {
		return garden.Schedule{}, err
	}
	if interval <= 0 {
		interval = r.snooze
	}
	s.Snooze(r.now(), interval)

	if err := r.save(ctx, "snooze schedule", storage.NewChangeSet().PutSchedule(s)); err != nil {
		return garden.Schedule{}, err
	}
	r.arm(ctx, s, p.Name)
	r.log.Info("schedule snoozed", logx.String("schedule_id", s.ID), logx.Time("next_due_at", *s.NextDueAt))
	return s, nil
}

// Preview lists the next n due dates spec would produce from now.
func (r *Repository) Preview(spec garden.ScheduleSpec, n int) ([]time.Time, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	spec.NextDueAt = nil
	s := garden.NewSchedule(r.cal, spec, r.now())
	s.Normalize()
	return r.cal.Preview(s.Policy(), s.LastCompletedAt, r.now(), n), nil
}
