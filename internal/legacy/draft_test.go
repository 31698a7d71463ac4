package legacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantit/internal/cadence"
	"plantit/internal/garden"
)

var draftNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func build(t *testing.T, doc string, villages ...garden.Village) *Draft {
	t.Helper()
	p := mustParse(t, doc)
	b := Builder{
		Calendar: cadence.Calendar{Location: time.UTC},
		Now:      func() time.Time { return draftNow },
	}
	return b.Build(p, villages, "test.json")
}

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()
	d := build(t, `{"plant":{}}`)

	assert.Equal(t, DefaultPlantName, d.Plant.Name)
	assert.Empty(t, d.Plant.Species)
	assert.True(t, garden.ValidID(d.Plant.ID))
	assert.Equal(t, draftNow, d.Plant.CreatedAt)
	assert.Nil(t, d.PendingVillage)
	assert.Empty(t, d.Plant.VillageID)
	assert.Equal(t, 0, d.TotalUnknownFieldCount())
	assert.Equal(t, "test.json", d.Source)
	assert.Empty(t, d.Metadata.LegacyID)
}

func TestBuild_KeepsLegacyID(t *testing.T) {
	t.Parallel()
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	d := build(t, `{"plant":{"id":"`+id+`","name":"Fern"}}`)
	assert.Equal(t, id, d.Plant.ID)
	assert.Equal(t, id, d.Metadata.LegacyID)
}

func TestBuild_UnknownGroups(t *testing.T) {
	t.Parallel()
	d := build(t, `{
		"plant": {"name": "X", "foo": "bar"},
		"zzz": 1,
		"activities": [{"kind": "water"}, {"kind": "note", "mood": "happy"}],
		"schedules": [{"frequency": 3, "color": "red"}]
	}`)

	assert.Equal(t, 4, d.TotalUnknownFieldCount())
	assert.Equal(t, []string{"payload", "plant", "activity[1]", "schedule[0]"}, d.UnknownGroups())
	assert.Equal(t, "bar", d.UnknownFields["plant"]["foo"])
	assert.Equal(t, "1", d.UnknownFields["payload"]["zzz"])
	_, ok := d.UnknownFields["activity[0]"]
	assert.False(t, ok, "empty groups are omitted")
}

func TestBuild_VillageMatching(t *testing.T) {
	t.Parallel()
	hill := garden.Village{ID: garden.NewID(), Name: "Green Hill", Climate: garden.Temperate}

	t.Run("case-insensitive match", func(t *testing.T) {
		t.Parallel()
		d := build(t, `{"plant":{"village":" green HILL "}}`, hill)
		assert.Equal(t, hill.ID, d.Plant.VillageID)
		assert.Nil(t, d.PendingVillage)
	})
	t.Run("pending with climate", func(t *testing.T) {
		t.Parallel()
		d := build(t, `{"plant":{"village":{"name":"Dune","climate":"ARID"}}}`, hill)
		assert.Empty(t, d.Plant.VillageID)
		require.NotNil(t, d.PendingVillage)
		assert.Equal(t, PendingVillage{Name: "Dune", Climate: garden.Arid}, *d.PendingVillage)
	})
	t.Run("unknown climate falls back", func(t *testing.T) {
		t.Parallel()
		d := build(t, `{"plant":{"villageName":"Dune","villageClimate":"swampy"}}`)
		require.NotNil(t, d.PendingVillage)
		assert.Equal(t, garden.Temperate, d.PendingVillage.Climate)
	})
}

func TestBuild_Activities(t *testing.T) {
	t.Parallel()
	d := build(t, `{
		"plant": {"createdAt": "2024-01-01T00:00:00Z"},
		"activities": [
			{"kind": "watered", "createdAt": "2024-02-01T00:00:00Z"},
			{"note": "undated"}
		]
	}`)

	require.Len(t, d.Activities, 2)
	for _, a := range d.Activities {
		assert.Equal(t, d.Plant.ID, a.PlantID)
		assert.True(t, garden.ValidID(a.ID))
	}
	assert.Equal(t, garden.ActivityWater, d.Activities[0].Kind)
	assert.True(t, d.Activities[0].CreatedAt.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))

	// kind defaults to note; date falls back to the plant's createdAt
	assert.Equal(t, garden.ActivityNote, d.Activities[1].Kind)
	assert.Equal(t, "undated", d.Activities[1].Note)
	assert.True(t, d.Activities[1].CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, d.Metadata.ActivityCount)
}

func TestBuild_Schedules(t *testing.T) {
	t.Parallel()
	d := build(t, `{
		"plant": {},
		"schedules": [
			{},
			{"frequency": 0, "weekday": 3, "dayOfMonth": 9},
			{"cadenceKind": "dayOfWeek", "weekday": 2, "dayOfMonth": 9},
			{"cadenceKind": "dayOfMonth", "dayOfMonth": 15, "nextDueAt": "2024-07-15T09:00:00Z"}
		]
	}`)
	require.Len(t, d.Schedules, 4)

	def := d.Schedules[0]
	assert.Equal(t, garden.ScheduleCustom, def.Kind)
	assert.Equal(t, cadence.EveryNDays, def.Cadence)
	assert.Equal(t, 7, def.FrequencyInDays)
	require.NotNil(t, def.NextDueAt)
	assert.True(t, def.NextDueAt.Equal(draftNow.AddDate(0, 0, 7)))

	// an explicit zero is floored, not defaulted
	zero := d.Schedules[1]
	assert.Equal(t, 1, zero.FrequencyInDays)
	assert.Zero(t, zero.Weekday)
	assert.Zero(t, zero.DayOfMonth)

	weekly := d.Schedules[2]
	assert.Equal(t, 2, weekly.Weekday)
	assert.Zero(t, weekly.DayOfMonth)
	require.NotNil(t, weekly.NextDueAt)
	// draftNow is a Saturday; weekday 2 with a Sunday-first week is Monday.
	assert.True(t, weekly.NextDueAt.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))

	monthly := d.Schedules[3]
	assert.Equal(t, 15, monthly.DayOfMonth)
	require.NotNil(t, monthly.NextDueAt)
	assert.True(t, monthly.NextDueAt.Equal(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC)), "explicit next due is kept")

	for _, s := range d.Schedules {
		assert.Equal(t, d.Plant.ID, s.PlantID)
	}
}

func TestBuild_OutOfRangeCadenceFieldsUnset(t *testing.T) {
	t.Parallel()
	d := build(t, `{
		"plant": {},
		"schedules": [
			{"cadenceKind": "dayOfWeek", "weekday": 0},
			{"cadenceKind": "dayOfWeek", "weekday": 8},
			{"cadenceKind": "dayOfWeek", "weekday": -1},
			{"cadenceKind": "dayOfWeek", "weekday": 7},
			{"cadenceKind": "dayOfMonth", "dayOfMonth": 32},
			{"cadenceKind": "dayOfMonth", "dayOfMonth": 0},
			{"cadenceKind": "dayOfMonth", "dayOfMonth": 31}
		]
	}`)
	require.Len(t, d.Schedules, 7)

	cases := []struct {
		weekday, dayOfMonth int
	}{
		{0, 0}, {0, 0}, {0, 0}, {7, 0},
		{0, 0}, {0, 0}, {0, 31},
	}
	for i, tc := range cases {
		s := d.Schedules[i]
		assert.Equal(t, tc.weekday, s.Weekday, "schedule %d weekday", i)
		assert.Equal(t, tc.dayOfMonth, s.DayOfMonth, "schedule %d day of month", i)
		assert.NotNil(t, s.NextDueAt, "schedule %d", i)
	}

	// An unset weekday falls back to the base date's own weekday.
	// draftNow is a Saturday, so the next match is the following Saturday.
	assert.True(t, d.Schedules[1].NextDueAt.Equal(time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)))
}

func TestBuild_NegativeFrequencyFloored(t *testing.T) {
	t.Parallel()
	d := build(t, `{"plant":{},"schedules":[{"frequency":-4}]}`)
	assert.Equal(t, 1, d.Schedules[0].FrequencyInDays)
}

func TestDraft_Retain(t *testing.T) {
	t.Parallel()
	d := build(t, `{"plant":{},"activities":[{"kind":"water"},{"kind":"note"},{"kind":"water"}],"schedules":[{},{}]}`)

	d.RetainActivities(func(_ int, a garden.Activity) bool { return a.Kind == garden.ActivityWater })
	d.RetainSchedules(func(i int, _ garden.Schedule) bool { return i == 1 })

	assert.Len(t, d.Activities, 2)
	assert.Len(t, d.Schedules, 1)
	assert.Equal(t, 3, d.Metadata.ActivityCount, "metadata reflects the source document")
}
