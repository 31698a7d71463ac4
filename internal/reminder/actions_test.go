package reminder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/storage"
	"plantit/internal/transport"
	logx "plantit/pkg/logx"
)

var actionNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeHandler struct {
	mu       sync.Mutex
	calls    []string
	snoozeBy time.Duration
}

func (h *fakeHandler) CompleteSchedule(_ context.Context, id string, at time.Time) (garden.Schedule, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id == "missing" {
		return garden.Schedule{}, fmt.Errorf("schedule %q: %w", id, storage.ErrNotFound)
	}
	h.calls = append(h.calls, "complete "+id)
	next := at.AddDate(0, 0, 3)
	return garden.Schedule{ID: id, LastCompletedAt: &at, NextDueAt: &next}, nil
}

func (h *fakeHandler) SnoozeSchedule(_ context.Context, id string, d time.Duration) (garden.Schedule, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "snooze "+id)
	h.snoozeBy = d
	next := actionNow.Add(time.Hour)
	return garden.Schedule{ID: id, NextDueAt: &next}, nil
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{in: "complete|abc", want: Action{Kind: ActionComplete, ScheduleID: "abc"}},
		{in: " snooze|abc ", want: Action{Kind: ActionSnooze, ScheduleID: "abc"}},
		{in: "complete|", wantErr: true},
		{in: "water|abc", wantErr: true},
		{in: "complete", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAction(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) Action {
	t.Helper()
	a, err := ParseAction(s)
	require.NoError(t, err)
	return a
}

func TestActions_HandleAudits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := storage.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	h := &fakeHandler{}
	a := NewActions(h, utc, logx.Nop(),
		WithAuditor(st),
		WithSnoozeInterval(2*time.Hour),
		WithActionClock(func() time.Time { return actionNow }),
	)

	s, err := a.Handle(ctx, Action{Kind: ActionComplete, ScheduleID: "s1"})
	require.NoError(t, err)
	assert.True(t, s.LastCompletedAt.Equal(actionNow))
	assert.Equal(t, "Done. Next due Jun 4 12:00.", a.Reply(Action{Kind: ActionComplete}, s, nil))

	s, err = a.Handle(ctx, Action{Kind: ActionSnooze, ScheduleID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, h.snoozeBy)
	assert.Equal(t, "Snoozed. Next due Jun 1 13:00.", a.Reply(Action{Kind: ActionSnooze}, s, nil))

	_, err = a.Handle(ctx, Action{Kind: ActionComplete, ScheduleID: "missing"})
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, "That schedule no longer exists.", a.Reply(Action{Kind: ActionComplete}, garden.Schedule{}, err))

	assert.Equal(t, []string{"complete s1", "snooze s1"}, h.calls)

	audit := st.(interface{ Audit() []storage.AuditEntry }).Audit()
	require.Len(t, audit, 3)
	assert.Equal(t, "reminder", audit[0].Subsystem)
	assert.Equal(t, "complete", audit[0].Action)
	assert.True(t, audit[0].OK)
	assert.Contains(t, audit[0].MetaJSON, "next_due_at")
	assert.False(t, audit[2].OK)
	assert.NotEmpty(t, audit[2].Error)
}

func TestActions_RunConsumesBusEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.New()
	h := &fakeHandler{}
	a := NewActions(h, utc, logx.Nop(), WithActionBus(bus), WithActionClock(func() time.Time { return actionNow }))
	go a.Run(ctx)

	replies := make(chan string, 8)
	ev := eventbus.Event{Type: eventbus.ReminderAction, Data: ActionEvent{
		Action: Action{Kind: ActionComplete, ScheduleID: "s9"},
		Reply:  func(_ context.Context, text string) { replies <- text },
	}}

	// Run subscribes asynchronously; publish until the first reply lands.
	var got string
	require.Eventually(t, func() bool {
		bus.Publish(ev)
		select {
		case got = <-replies:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, "Done. Next due Jun 4 12:00.", got)
}

func TestNotification_Buttons(t *testing.T) {
	t.Parallel()
	to := transport.ChatTarget{ChatID: 42}

	n := Notification(Reminder{ScheduleID: "s1", Title: "Fern", Body: "Watering"}, "telegram", to)
	assert.Equal(t, "Fern\nWatering", n.Text)
	assert.Equal(t, priorityReminder, n.Priority)
	require.Len(t, n.Options.Buttons, 1)
	assert.Equal(t, "complete|s1", n.Options.Buttons[0][0].Data)
	assert.Equal(t, "snooze|s1", n.Options.Buttons[0][1].Data)

	d := Notification(Reminder{Title: digestTitle, Body: "• Fern"}, "telegram", to)
	assert.Equal(t, priorityDigest, d.Priority)
	assert.Empty(t, d.Options.Buttons)
}

func TestFor(t *testing.T) {
	t.Parallel()
	due := time.Date(2024, 6, 4, 9, 30, 45, 0, time.UTC)
	s := garden.Schedule{ID: "s", PlantID: "p", Kind: garden.ScheduleWatering, Cadence: "everyNDays", FrequencyInDays: 3, NextDueAt: &due}

	r, ok := For(utc, s, "  ")
	require.True(t, ok)
	assert.Equal(t, "Plant Reminder", r.Title)
	assert.Equal(t, "Watering · Every 3 days · Due Jun 4, 2024 09:30", r.Body)
	assert.True(t, r.At.Equal(time.Date(2024, 6, 4, 9, 30, 0, 0, time.UTC)))

	s.NextDueAt = nil
	_, ok = For(utc, s, "Fern")
	assert.False(t, ok)
}
