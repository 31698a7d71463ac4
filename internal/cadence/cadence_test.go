package cadence

import (
	"testing"
	"time"
)

var utc = Calendar{Location: time.UTC, FirstWeekday: time.Sunday}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestNextDue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		p    Policy
		last *time.Time
		ref  time.Time
		want time.Time
	}{
		{
			name: "every n days from completion",
			p:    Policy{Kind: EveryNDays, FrequencyInDays: 3},
			last: ptr(at(2024, time.January, 1, 9, 0)),
			ref:  at(2024, time.March, 1, 0, 0),
			want: at(2024, time.January, 4, 9, 0),
		},
		{
			name: "every n days from reference without completion",
			p:    Policy{Kind: EveryNDays, FrequencyInDays: 7},
			ref:  at(2024, time.January, 1, 9, 30),
			want: at(2024, time.January, 8, 9, 30),
		},
		{
			name: "every n days clamps zero frequency to one",
			p:    Policy{Kind: EveryNDays, FrequencyInDays: 0},
			ref:  at(2024, time.January, 1, 9, 0),
			want: at(2024, time.January, 2, 9, 0),
		},
		{
			name: "day of week wednesday to monday",
			p:    Policy{Kind: DayOfWeek, Weekday: 2},
			ref:  at(2024, time.January, 3, 15, 0), // Wednesday
			want: at(2024, time.January, 8, 0, 0),
		},
		{
			name: "day of week same weekday is never base day",
			p:    Policy{Kind: DayOfWeek, Weekday: 4},
			ref:  at(2024, time.January, 3, 0, 0), // Wednesday midnight
			want: at(2024, time.January, 10, 0, 0),
		},
		{
			name: "day of week defaults to base weekday",
			p:    Policy{Kind: DayOfWeek},
			ref:  at(2024, time.January, 6, 8, 0), // Saturday
			want: at(2024, time.January, 13, 0, 0),
		},
		{
			name: "day of month later this month",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 20},
			ref:  at(2024, time.January, 10, 18, 45),
			want: at(2024, time.January, 20, 18, 45),
		},
		{
			name: "day of month 31 clamps to february",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 31},
			ref:  at(2023, time.January, 31, 10, 0),
			want: at(2023, time.February, 28, 10, 0),
		},
		{
			name: "day of month 31 in leap february",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 31},
			ref:  at(2024, time.January, 31, 10, 0),
			want: at(2024, time.February, 29, 10, 0),
		},
		{
			name: "clamp recomputed for the following month",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 31},
			last: ptr(at(2023, time.February, 28, 10, 0)),
			ref:  at(2023, time.February, 28, 10, 0),
			want: at(2023, time.March, 31, 10, 0),
		},
		{
			name: "day of month rolls over the year",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 5},
			ref:  at(2023, time.December, 20, 7, 0),
			want: at(2024, time.January, 5, 7, 0),
		},
		{
			name: "day of month defaults to base day",
			p:    Policy{Kind: DayOfMonth},
			ref:  at(2024, time.April, 15, 12, 0),
			want: at(2024, time.May, 15, 12, 0),
		},
		{
			name: "day of month out of range is clamped",
			p:    Policy{Kind: DayOfMonth, DayOfMonth: 45},
			ref:  at(2024, time.April, 1, 12, 0),
			want: at(2024, time.April, 30, 12, 0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := utc.NextDue(tc.p, tc.last, tc.ref)
			if !ok {
				t.Fatalf("NextDue returned !ok")
			}
			if !got.Equal(tc.want) {
				t.Fatalf("NextDue = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNextDue_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, ok := utc.NextDue(Policy{Kind: "fortnightly"}, nil, at(2024, 1, 1, 0, 0)); ok {
		t.Fatalf("expected !ok for unknown kind")
	}
}

func TestNextDue_AlwaysAfterBase(t *testing.T) {
	t.Parallel()

	policies := []Policy{
		{Kind: EveryNDays, FrequencyInDays: 1},
		{Kind: EveryNDays, FrequencyInDays: 30},
		{Kind: DayOfWeek, Weekday: 1},
		{Kind: DayOfWeek, Weekday: 7},
		{Kind: DayOfMonth, DayOfMonth: 1},
		{Kind: DayOfMonth, DayOfMonth: 29},
		{Kind: DayOfMonth, DayOfMonth: 31},
	}
	start := at(2023, time.January, 1, 6, 30)
	for day := 0; day < 800; day += 3 {
		base := start.AddDate(0, 0, day).Add(time.Duration(day%24) * time.Hour)
		for _, p := range policies {
			got, ok := utc.NextDue(p, &base, base)
			if !ok || !got.After(base) {
				t.Fatalf("policy %+v base %s -> %s (ok=%v)", p, base, got, ok)
			}
		}
	}
}

func TestNextDue_DeterministicWithLastCompleted(t *testing.T) {
	t.Parallel()

	last := at(2024, time.June, 10, 8, 0)
	p := Policy{Kind: EveryNDays, FrequencyInDays: 4}
	a, _ := utc.NextDue(p, &last, at(2024, time.June, 11, 0, 0))
	b, _ := utc.NextDue(p, &last, at(2030, time.January, 1, 0, 0))
	if !a.Equal(b) {
		t.Fatalf("reference leaked into result: %s vs %s", a, b)
	}
}

func TestNextDue_DSTKeepsWallClock(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	cal := Calendar{Location: loc}
	base := time.Date(2024, time.March, 30, 9, 0, 0, 0, loc) // day before DST starts
	got, _ := cal.NextDue(Policy{Kind: EveryNDays, FrequencyInDays: 1}, &base, base)
	if got.Hour() != 9 || got.Day() != 31 {
		t.Fatalf("got %s, want 2024-03-31 09:00 local", got)
	}
}

func TestWeekdayConvention(t *testing.T) {
	t.Parallel()

	if got := utc.Weekday(1); got != time.Sunday {
		t.Fatalf("sunday-first weekday 1 = %s", got)
	}
	mon := Calendar{Location: time.UTC, FirstWeekday: time.Monday}
	if got := mon.Weekday(1); got != time.Monday {
		t.Fatalf("monday-first weekday 1 = %s", got)
	}
	if got := mon.Weekday(7); got != time.Sunday {
		t.Fatalf("monday-first weekday 7 = %s", got)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if back := mon.Weekday(mon.WeekdayNumber(d)); back != d {
			t.Fatalf("round trip %s -> %s", d, back)
		}
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	got := utc.Preview(Policy{Kind: DayOfMonth, DayOfMonth: 31}, nil, at(2023, time.January, 15, 9, 0), 4)
	want := []time.Time{
		at(2023, time.January, 31, 9, 0),
		at(2023, time.February, 28, 9, 0),
		at(2023, time.March, 31, 9, 0),
		at(2023, time.April, 30, 9, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("preview[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	cases := map[string]Policy{
		"Every day":           {Kind: EveryNDays, FrequencyInDays: 1},
		"Every 3 days":        {Kind: EveryNDays, FrequencyInDays: 3},
		"Every Monday":        {Kind: DayOfWeek, Weekday: 2},
		"Monthly on the 1st":  {Kind: DayOfMonth, DayOfMonth: 1},
		"Monthly on the 12th": {Kind: DayOfMonth, DayOfMonth: 12},
		"Monthly on the 22nd": {Kind: DayOfMonth, DayOfMonth: 22},
		"Monthly on the 31st": {Kind: DayOfMonth, DayOfMonth: 31},
	}
	for want, p := range cases {
		if got := utc.Describe(p); got != want {
			t.Fatalf("Describe(%+v) = %q, want %q", p, got, want)
		}
	}
}
