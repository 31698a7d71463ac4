package garden

import (
	"testing"
	"time"

	"plantit/internal/cadence"
)

var cal = cadence.Calendar{Location: time.UTC}

func day(d, hh int) time.Time { return time.Date(2024, time.May, d, hh, 0, 0, 0, time.UTC) }

func TestNewSchedule_ComputesNextDue(t *testing.T) {
	t.Parallel()

	s := NewSchedule(cal, ScheduleSpec{Kind: ScheduleWatering, FrequencyInDays: 0}, day(1, 9))
	if s.FrequencyInDays != 1 {
		t.Fatalf("frequency = %d, want 1", s.FrequencyInDays)
	}
	if s.Cadence != cadence.EveryNDays {
		t.Fatalf("cadence = %q", s.Cadence)
	}
	if s.NextDueAt == nil || !s.NextDueAt.Equal(day(2, 9)) {
		t.Fatalf("next due = %v", s.NextDueAt)
	}
	if s.ID == "" || !ValidID(s.ID) {
		t.Fatalf("id not generated: %q", s.ID)
	}
}

func TestNewSchedule_KeepsExplicitNextDue(t *testing.T) {
	t.Parallel()

	due := day(20, 8)
	s := NewSchedule(cal, ScheduleSpec{Kind: ScheduleCustom, FrequencyInDays: 3, NextDueAt: &due}, day(1, 9))
	if !s.NextDueAt.Equal(due) {
		t.Fatalf("explicit next due overwritten: %v", s.NextDueAt)
	}
	due = day(25, 8)
	if s.NextDueAt.Equal(due) {
		t.Fatalf("next due aliases caller's time")
	}
}

func TestRecomputeNextDue_Idempotent(t *testing.T) {
	t.Parallel()

	last := day(3, 7)
	s := NewSchedule(cal, ScheduleSpec{Cadence: cadence.DayOfWeek, Weekday: 3, LastCompletedAt: &last}, day(4, 0))
	s.RecomputeNextDue(cal, day(10, 0))
	first := *s.NextDueAt
	s.RecomputeNextDue(cal, day(10, 0))
	if !s.NextDueAt.Equal(first) {
		t.Fatalf("recompute not idempotent: %s vs %s", first, *s.NextDueAt)
	}
}

func TestIsDue(t *testing.T) {
	t.Parallel()

	due := day(5, 12)
	s := Schedule{NextDueAt: &due}
	cases := []struct {
		now  time.Time
		want bool
	}{
		{day(5, 11), false},
		{day(5, 12), true},
		{day(6, 0), true},
	}
	for _, tc := range cases {
		if got := s.IsDue(tc.now); got != tc.want {
			t.Fatalf("IsDue(%s) = %v, want %v", tc.now, got, tc.want)
		}
	}
	if (Schedule{}).IsDue(day(5, 12)) {
		t.Fatalf("schedule without next due must not be due")
	}
}

func TestMarkCompleted_AnchorsToCompletion(t *testing.T) {
	t.Parallel()

	s := NewSchedule(cal, ScheduleSpec{Kind: ScheduleWatering, FrequencyInDays: 3}, day(1, 9))
	// Completed two days late.
	s.MarkCompleted(cal, day(6, 18))
	if s.LastCompletedAt == nil || !s.LastCompletedAt.Equal(day(6, 18)) {
		t.Fatalf("last completed = %v", s.LastCompletedAt)
	}
	if !s.NextDueAt.Equal(day(9, 18)) {
		t.Fatalf("next due = %s, want %s", *s.NextDueAt, day(9, 18))
	}
}

func TestSnooze(t *testing.T) {
	t.Parallel()

	last := day(1, 9)
	cases := []struct {
		name     string
		nextDue  time.Time
		now      time.Time
		interval time.Duration
		want     time.Time
	}{
		{"overdue snoozes from now", day(2, 9), day(3, 10), 0, day(3, 11)},
		{"future due snoozes from due", day(4, 9), day(3, 10), 0, day(4, 10)},
		{"custom interval", day(2, 9), day(2, 9), 3 * time.Hour, day(2, 12)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			due := tc.nextDue
			s := Schedule{
				Kind:            ScheduleWatering,
				Cadence:         cadence.EveryNDays,
				FrequencyInDays: 4,
				LastCompletedAt: &last,
				NextDueAt:       &due,
			}
			before := s.Clone()
			s.Snooze(tc.now, tc.interval)

			if !s.NextDueAt.Equal(tc.want) {
				t.Fatalf("next due = %s, want %s", *s.NextDueAt, tc.want)
			}
			if s.NextDueAt.Before(tc.now) {
				t.Fatalf("snoozed into the past")
			}
			if !s.LastCompletedAt.Equal(*before.LastCompletedAt) ||
				s.Cadence != before.Cadence ||
				s.FrequencyInDays != before.FrequencyInDays ||
				s.Weekday != before.Weekday ||
				s.DayOfMonth != before.DayOfMonth {
				t.Fatalf("snooze changed more than next due: %+v", s)
			}
		})
	}
}

func TestSnooze_WithoutNextDue(t *testing.T) {
	t.Parallel()

	var s Schedule
	s.Snooze(day(1, 9), 0)
	if s.NextDueAt == nil || !s.NextDueAt.Equal(day(1, 10)) {
		t.Fatalf("next due = %v", s.NextDueAt)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	s := Schedule{Cadence: cadence.DayOfMonth, Weekday: 3, DayOfMonth: 12}
	s.Normalize()
	if s.Weekday != 0 || s.DayOfMonth != 12 || s.FrequencyInDays != 1 {
		t.Fatalf("normalize = %+v", s)
	}
}

func TestScheduleKindActivityMapping(t *testing.T) {
	t.Parallel()

	for _, k := range []ScheduleKind{ScheduleWatering, ScheduleFertilizing} {
		ak, ok := k.DefaultActivityKind()
		if !ok {
			t.Fatalf("%s has no activity kind", k)
		}
		back, ok := ScheduleKindFor(ak)
		if !ok || back != k {
			t.Fatalf("round trip %s -> %s -> %s", k, ak, back)
		}
	}
	if _, ok := ScheduleCustom.DefaultActivityKind(); ok {
		t.Fatalf("custom schedules complete directly")
	}
}
