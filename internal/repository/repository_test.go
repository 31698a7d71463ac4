package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	"plantit/internal/reminder"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sinkCall struct {
	cancel bool
	id     string
	at     time.Time
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (s *recordingSink) ScheduleReminder(_ context.Context, r reminder.Reminder) {
	s.mu.Lock()
	s.calls = append(s.calls, sinkCall{id: r.ScheduleID, at: r.At})
	s.mu.Unlock()
}

func (s *recordingSink) CancelReminder(_ context.Context, id string) {
	s.mu.Lock()
	s.calls = append(s.calls, sinkCall{cancel: true, id: id})
	s.mu.Unlock()
}

func (s *recordingSink) last() sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return sinkCall{}
	}
	return s.calls[len(s.calls)-1]
}

type fixture struct {
	repo  *Repository
	store storage.Store
	sink  *recordingSink
	clock *clock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := storage.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	f := fixture{store: st, sink: &recordingSink{}, clock: &clock{now: testNow}}
	f.repo = New(st, cadence.Calendar{Location: time.UTC}, logx.Nop(), WithSink(f.sink), WithClock(f.clock.Now))
	return f
}

func intPtr(n int) *int { return &n }

func TestVillages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.repo.CreateVillage(ctx, "   ", garden.Arid)
	assert.ErrorIs(t, err, ErrEmptyName)

	v, err := f.repo.CreateVillage(ctx, " Porch ", "")
	require.NoError(t, err)
	assert.Equal(t, "Porch", v.Name)
	assert.Equal(t, garden.Temperate, v.Climate)

	got, err := f.repo.ResolveVillage(ctx, "porch")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	v, err = f.repo.UpdateVillage(ctx, v.ID, "Back Porch", garden.Arid)
	require.NoError(t, err)
	assert.Equal(t, garden.Arid, v.Climate)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Aloe", VillageID: v.ID})
	require.NoError(t, err)

	require.NoError(t, f.repo.DeleteVillage(ctx, v.ID))
	p, err = f.repo.Plant(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, p.VillageID, "plants outlive their village")

	assert.ErrorIs(t, f.repo.DeleteVillage(ctx, v.ID), storage.ErrNotFound)
}

func TestCreatePlant_WithWateringSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: " Fern ", Species: " Nephrolepis ", WateringFrequencyInDays: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, "Fern", p.Name)
	assert.Equal(t, "Nephrolepis", p.Species)
	assert.Equal(t, testNow, p.CreatedAt)

	scheds, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheds, 1)
	s := scheds[0]
	assert.Equal(t, garden.ScheduleWatering, s.Kind)
	require.NotNil(t, s.NextDueAt)
	assert.True(t, s.NextDueAt.Equal(testNow.AddDate(0, 0, 3)))

	call := f.sink.last()
	assert.Equal(t, sinkCall{id: s.ID, at: testNow.AddDate(0, 0, 3)}, call)

	_, err = f.repo.CreatePlant(ctx, PlantInput{Name: ""})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestUpdatePlant_ReconcilesWateringSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(3)})
	require.NoError(t, err)

	_, err = f.repo.UpdatePlant(ctx, p.ID, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(0)})
	require.NoError(t, err)
	scheds, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheds, 1)
	assert.Equal(t, 1, scheds[0].FrequencyInDays, "frequency is floored at one day")
	assert.True(t, scheds[0].NextDueAt.Equal(testNow.AddDate(0, 0, 1)))

	_, err = f.repo.UpdatePlant(ctx, p.ID, PlantInput{Name: "Fern"})
	require.NoError(t, err)
	scheds, err = f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, scheds)
	assert.True(t, f.sink.last().cancel)
}

func TestRecordActivity_WaterCompletesWateringSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(3)})
	require.NoError(t, err)

	f.clock.Advance(5 * 24 * time.Hour)
	when := f.clock.Now()

	a, err := f.repo.RecordActivity(ctx, p.ID, garden.ActivityWater, " soaked ")
	require.NoError(t, err)
	assert.Equal(t, "soaked", a.Note)

	p, err = f.repo.Plant(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, p.LastWateredAt)
	assert.True(t, p.LastWateredAt.Equal(when))

	scheds, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheds, 1)
	require.NotNil(t, scheds[0].LastCompletedAt)
	assert.True(t, scheds[0].LastCompletedAt.Equal(when))
	assert.True(t, scheds[0].NextDueAt.Equal(when.AddDate(0, 0, 3)), "late completion anchors the next interval")

	assert.Equal(t, sinkCall{id: scheds[0].ID, at: when.AddDate(0, 0, 3)}, f.sink.last())

	_, err = f.repo.RecordActivity(ctx, p.ID, "prune", "")
	var inv *InvalidError
	assert.ErrorAs(t, err, &inv)
}

func TestRecordActivity_NoteLeavesSchedulesAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(3)})
	require.NoError(t, err)
	before, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.repo.RecordActivity(ctx, p.ID, garden.ActivityNote, "new leaf")
	require.NoError(t, err)

	after, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, after[0].LastCompletedAt)
	assert.True(t, before[0].NextDueAt.Equal(*after[0].NextDueAt))

	p, err = f.repo.Plant(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, p.LastWateredAt)
}

func TestCompleteSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Rose"})
	require.NoError(t, err)
	fert, err := f.repo.AddSchedule(ctx, garden.ScheduleSpec{PlantID: p.ID, Kind: garden.ScheduleFertilizing, FrequencyInDays: 14})
	require.NoError(t, err)
	custom, err := f.repo.AddSchedule(ctx, garden.ScheduleSpec{PlantID: p.ID, Kind: garden.ScheduleCustom, Cadence: cadence.DayOfMonth, DayOfMonth: 15})
	require.NoError(t, err)

	at := testNow.Add(2 * time.Hour)
	done, err := f.repo.CompleteSchedule(ctx, fert.ID, at)
	require.NoError(t, err)
	assert.True(t, done.LastCompletedAt.Equal(at))
	assert.True(t, done.NextDueAt.Equal(at.AddDate(0, 0, 14)))

	acts, err := f.repo.Activities(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, garden.ActivityFertilize, acts[0].Kind)
	assert.True(t, acts[0].CreatedAt.Equal(at))

	done, err = f.repo.CompleteSchedule(ctx, custom.ID, at)
	require.NoError(t, err)
	assert.True(t, done.NextDueAt.Equal(time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)))
	acts, err = f.repo.Activities(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, acts, 1, "custom schedules record no activity")

	_, err = f.repo.CompleteSchedule(ctx, garden.NewID(), at)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnoozeSchedule(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(1)})
	require.NoError(t, err)
	scheds, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	orig := scheds[0]

	// due in the future: pushed from the due date
	s, err := f.repo.SnoozeSchedule(ctx, orig.ID, 0)
	require.NoError(t, err)
	assert.True(t, s.NextDueAt.Equal(orig.NextDueAt.Add(garden.DefaultSnooze)))
	assert.Equal(t, orig.FrequencyInDays, s.FrequencyInDays)
	assert.Nil(t, s.LastCompletedAt)

	// overdue: pushed from now
	f.clock.Advance(72 * time.Hour)
	s, err = f.repo.SnoozeSchedule(ctx, orig.ID, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, s.NextDueAt.Equal(f.clock.Now().Add(30*time.Minute)))
	assert.False(t, s.NextDueAt.Before(f.clock.Now()))
	assert.Equal(t, s.ID, f.sink.last().id)
}

func TestSaveSchedule_AlwaysRecomputes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern"})
	require.NoError(t, err)

	bogus := testNow.AddDate(1, 0, 0)
	s, err := f.repo.AddSchedule(ctx, garden.ScheduleSpec{PlantID: p.ID, FrequencyInDays: 2, NextDueAt: &bogus, Weekday: 3})
	require.NoError(t, err)
	assert.True(t, s.NextDueAt.Equal(testNow.AddDate(0, 0, 2)), "explicit due date is ignored")
	assert.Zero(t, s.Weekday, "fields foreign to the cadence are dropped")
	assert.Equal(t, garden.ScheduleCustom, s.Kind)

	s.Cadence = cadence.DayOfWeek
	s.Weekday = 2 // Monday with a Sunday-first week
	s.NextDueAt = &bogus
	saved, err := f.repo.SaveSchedule(ctx, s)
	require.NoError(t, err)
	assert.True(t, saved.NextDueAt.Equal(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)))

	stored, err := f.repo.Schedule(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, stored.NextDueAt.Equal(*saved.NextDueAt))

	s.Weekday = 9
	_, err = f.repo.SaveSchedule(ctx, s)
	var inv *InvalidError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "weekday", inv.Field)
}

func TestDeletePlant_CancelsReminders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(2)})
	require.NoError(t, err)
	scheds, err := f.repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.repo.AddPhoto(ctx, p.ID, "sprout", "")
	require.NoError(t, err)

	require.NoError(t, f.repo.DeletePlant(ctx, p.ID))
	assert.Equal(t, sinkCall{cancel: true, id: scheds[0].ID}, f.sink.last())

	photos, err := f.repo.Photos(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, photos)
	_, err = f.repo.Plant(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolvePlant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Basil"})
	require.NoError(t, err)
	_, err = f.repo.CreatePlant(ctx, PlantInput{Name: "Mint"})
	require.NoError(t, err)
	_, err = f.repo.CreatePlant(ctx, PlantInput{Name: "mint"})
	require.NoError(t, err)

	got, err := f.repo.ResolvePlant(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	got, err = f.repo.ResolvePlant(ctx, "BASIL")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = f.repo.ResolvePlant(ctx, "Mint")
	assert.ErrorIs(t, err, ErrAmbiguous)
	_, err = f.repo.ResolvePlant(ctx, "Thyme")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpcomingAndPreview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.repo.CreatePlant(ctx, PlantInput{Name: "Fern", WateringFrequencyInDays: intPtr(1)})
	require.NoError(t, err)
	_, err = f.repo.AddSchedule(ctx, garden.ScheduleSpec{PlantID: p.ID, Kind: garden.ScheduleFertilizing, FrequencyInDays: 30})
	require.NoError(t, err)

	soon, err := f.repo.Upcoming(ctx, 48*time.Hour)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, garden.ScheduleWatering, soon[0].Kind)

	all, err := f.repo.Upcoming(ctx, 60*24*time.Hour)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	dates, err := f.repo.Preview(garden.ScheduleSpec{Cadence: cadence.DayOfMonth, DayOfMonth: 31}, 3)
	require.NoError(t, err)
	require.Len(t, dates, 3)
	assert.Equal(t, []int{30, 31, 31}, []int{dates[0].Day(), dates[1].Day(), dates[2].Day()})
	assert.Equal(t, []time.Month{time.June, time.July, time.August}, []time.Month{dates[0].Month(), dates[1].Month(), dates[2].Month()})
}
