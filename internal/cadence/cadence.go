package cadence

import (
	"fmt"
	"time"
)

type Kind string

const (
	EveryNDays Kind = "everyNDays"
	DayOfWeek  Kind = "dayOfWeek"
	DayOfMonth Kind = "dayOfMonth"
)

var kinds = []Kind{EveryNDays, DayOfWeek, DayOfMonth}

// Kinds lists the supported cadence kinds in display order.
func Kinds() []Kind { return append([]Kind(nil), kinds...) }

// ParseKind matches a raw tag exactly (e.g. "dayOfWeek").
func ParseKind(raw string) (Kind, bool) {
	for _, k := range kinds {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

func (k Kind) Valid() bool {
	_, ok := ParseKind(string(k))
	return ok
}

func (k Kind) DisplayName() string {
	switch k {
	case EveryNDays:
		return "Every N Days"
	case DayOfWeek:
		return "Day of Week"
	case DayOfMonth:
		return "Day of Month"
	default:
		return string(k)
	}
}

// Policy is the cadence part of a schedule.
//
// Weekday (1..7) and DayOfMonth (1..31) use 0 for "unset"; an unset value
// falls back to the base date's own weekday/day.
type Policy struct {
	Kind            Kind
	FrequencyInDays int
	Weekday         int
	DayOfMonth      int
}

// Calendar fixes the time zone and week convention used for cadence math.
// The zero value uses time.Local and Sunday as weekday 1.
type Calendar struct {
	Location     *time.Location
	FirstWeekday time.Weekday
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Weekday maps a 1..7 weekday number onto time.Weekday relative to FirstWeekday.
func (c Calendar) Weekday(n int) time.Weekday {
	return time.Weekday((int(c.FirstWeekday) + mod(n-1, 7)) % 7)
}

// WeekdayNumber is the inverse of Weekday.
func (c Calendar) WeekdayNumber(d time.Weekday) int {
	return mod(int(d)-int(c.FirstWeekday), 7) + 1
}

// Zone is the calendar's location (time.Local when unset).
func (c Calendar) Zone() *time.Location { return c.loc() }

// In converts t into the calendar's location.
func (c Calendar) In(t time.Time) time.Time { return t.In(c.loc()) }

// NextDue returns the next due date for p. The result is strictly after the
// base (lastCompletedAt when present, else reference).
//
// ok is false only for an unknown policy kind.
func (c Calendar) NextDue(p Policy, lastCompletedAt *time.Time, reference time.Time) (time.Time, bool) {
	base := reference
	if lastCompletedAt != nil {
		base = *lastCompletedAt
	}
	base = base.In(c.loc())

	switch p.Kind {
	case EveryNDays:
		return base.AddDate(0, 0, max(1, p.FrequencyInDays)), true
	case DayOfWeek:
		return c.nextWeekday(p, base), true
	case DayOfMonth:
		return c.nextDayOfMonth(p, base), true
	default:
		return time.Time{}, false
	}
}

func (c Calendar) nextWeekday(p Policy, base time.Time) time.Time {
	target := base.Weekday()
	if p.Weekday != 0 {
		target = c.Weekday(p.Weekday)
	}
	y, m, d := base.Date()
	for i := 1; i <= 7; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, c.loc())
		if day.Weekday() == target {
			return day
		}
	}
	// unreachable: seven consecutive days cover every weekday
	return time.Date(y, m, d+7, 0, 0, 0, 0, c.loc())
}

func (c Calendar) nextDayOfMonth(p Policy, base time.Time) time.Time {
	want := p.DayOfMonth
	if want == 0 {
		want = base.Day()
	}
	want = clamp(want, 1, 31)

	y, m, _ := base.Date()
	hh, mm := base.Hour(), base.Minute()

	cand := time.Date(y, m, min(want, daysIn(y, m)), hh, mm, 0, 0, c.loc())
	if cand.After(base) {
		return cand
	}

	// Clamp is recomputed for the following month (Jan 31 -> Feb 28 -> Mar 31).
	first := time.Date(y, m+1, 1, 0, 0, 0, 0, c.loc())
	ny, nm := first.Year(), first.Month()
	return time.Date(ny, nm, min(want, daysIn(ny, nm)), hh, mm, 0, 0, c.loc())
}

// Preview returns the next n due dates, each computed from the previous one
// as if it had been completed exactly on time.
func (c Calendar) Preview(p Policy, lastCompletedAt *time.Time, reference time.Time, n int) []time.Time {
	out := make([]time.Time, 0, max(n, 0))
	last := lastCompletedAt
	for i := 0; i < n; i++ {
		next, ok := c.NextDue(p, last, reference)
		if !ok {
			break
		}
		out = append(out, next)
		last = &next
	}
	return out
}

// Describe renders p for humans ("Every 3 days", "Every Monday", "Monthly on the 31st").
func (c Calendar) Describe(p Policy) string {
	switch p.Kind {
	case EveryNDays:
		n := max(1, p.FrequencyInDays)
		if n == 1 {
			return "Every day"
		}
		return fmt.Sprintf("Every %d days", n)
	case DayOfWeek:
		if p.Weekday == 0 {
			return "Weekly"
		}
		return "Every " + c.Weekday(p.Weekday).String()
	case DayOfMonth:
		if p.DayOfMonth == 0 {
			return "Monthly"
		}
		return "Monthly on the " + ordinal(clamp(p.DayOfMonth, 1, 31))
	default:
		return string(p.Kind)
	}
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func mod(a, b int) int {
	return ((a % b) + b) % b
}
