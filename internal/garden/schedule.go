package garden

import (
	"time"

	"plantit/internal/cadence"
)

// DefaultSnooze is how far a snooze pushes a schedule when no interval is given.
const DefaultSnooze = time.Hour

// DefaultFrequencyInDays is used when a schedule is created without a frequency.
const DefaultFrequencyInDays = 7

type Schedule struct {
	ID              string
	PlantID         string
	Kind            ScheduleKind
	Cadence         cadence.Kind
	FrequencyInDays int
	Weekday         int // 1..7, 0 = unset
	DayOfMonth      int // 1..31, 0 = unset
	LastCompletedAt *time.Time
	// NextDueAt is a cache of the cadence computation; see RecomputeNextDue.
	NextDueAt *time.Time
}

// ScheduleSpec carries the user-editable fields of a schedule.
type ScheduleSpec struct {
	ID              string
	PlantID         string
	Kind            ScheduleKind
	Cadence         cadence.Kind
	FrequencyInDays int
	Weekday         int
	DayOfMonth      int
	LastCompletedAt *time.Time
	NextDueAt       *time.Time
}

// NewSchedule builds a schedule from spec. Frequency is floored at 1 and an
// empty cadence means every N days. When spec has no NextDueAt it is computed
// immediately with now as the reference.
func NewSchedule(cal cadence.Calendar, spec ScheduleSpec, now time.Time) Schedule {
	s := Schedule{
		ID:              spec.ID,
		PlantID:         spec.PlantID,
		Kind:            spec.Kind,
		Cadence:         spec.Cadence,
		FrequencyInDays: max(1, spec.FrequencyInDays),
		Weekday:         spec.Weekday,
		DayOfMonth:      spec.DayOfMonth,
		LastCompletedAt: cloneTime(spec.LastCompletedAt),
		NextDueAt:       cloneTime(spec.NextDueAt),
	}
	if s.ID == "" {
		s.ID = NewID()
	}
	if s.Kind == "" {
		s.Kind = ScheduleCustom
	}
	if s.Cadence == "" {
		s.Cadence = cadence.EveryNDays
	}
	if s.NextDueAt == nil {
		s.RecomputeNextDue(cal, now)
	}
	return s
}

func (s Schedule) Policy() cadence.Policy {
	return cadence.Policy{
		Kind:            s.Cadence,
		FrequencyInDays: s.FrequencyInDays,
		Weekday:         s.Weekday,
		DayOfMonth:      s.DayOfMonth,
	}
}

// RecomputeNextDue re-derives NextDueAt from the cadence fields and LastCompletedAt.
// An unknown cadence clears it.
func (s *Schedule) RecomputeNextDue(cal cadence.Calendar, reference time.Time) {
	next, ok := cal.NextDue(s.Policy(), s.LastCompletedAt, reference)
	if !ok {
		s.NextDueAt = nil
		return
	}
	s.NextDueAt = &next
}

// IsDue reports whether the schedule has a due date at or before now.
func (s Schedule) IsDue(now time.Time) bool {
	return s.NextDueAt != nil && !s.NextDueAt.After(now)
}

// MarkCompleted records a completion at and anchors the next occurrence to it,
// so a late completion never compresses the following interval.
func (s *Schedule) MarkCompleted(cal cadence.Calendar, at time.Time) {
	s.LastCompletedAt = &at
	s.RecomputeNextDue(cal, at)
}

// Snooze pushes NextDueAt to max(now, NextDueAt) + interval. Cadence fields and
// LastCompletedAt are untouched. A non-positive interval uses DefaultSnooze.
func (s *Schedule) Snooze(now time.Time, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSnooze
	}
	base := now
	if s.NextDueAt != nil && s.NextDueAt.After(now) {
		base = *s.NextDueAt
	}
	next := base.Add(interval)
	s.NextDueAt = &next
}

// Normalize drops cadence fields that do not apply to the cadence kind.
func (s *Schedule) Normalize() {
	s.FrequencyInDays = max(1, s.FrequencyInDays)
	if s.Cadence != cadence.DayOfWeek {
		s.Weekday = 0
	}
	if s.Cadence != cadence.DayOfMonth {
		s.DayOfMonth = 0
	}
}

// Clone returns a deep copy (time pointers are not shared).
func (s Schedule) Clone() Schedule {
	s.LastCompletedAt = cloneTime(s.LastCompletedAt)
	s.NextDueAt = cloneTime(s.NextDueAt)
	return s
}
