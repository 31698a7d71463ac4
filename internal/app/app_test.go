package app

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantit/internal/config"
	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/reminder"
	"plantit/internal/repository"
	"plantit/internal/transport"
	"plantit/internal/transport/telegram/router"
	logx "plantit/pkg/logx"
)

type recAdapter struct {
	mu      sync.Mutex
	sent    []string
	answers []string
	edits   []string
}

func (a *recAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (a *recAdapter) Stop(context.Context) error                           { return nil }

func (a *recAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, text)
	return transport.MessageRef{MessageID: len(a.sent)}, nil
}

func (a *recAdapter) EditText(_ context.Context, _ transport.MessageRef, text string, _ *transport.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.edits = append(a.edits, text)
	return nil
}

func (a *recAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, text)
	return nil
}

func (a *recAdapter) snapshot() (sent, answers, edits []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...), append([]string(nil), a.answers...), append([]string(nil), a.edits...)
}

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage = config.StorageConfig{Driver: "memory"}
	cfg.Calendar.Timezone = "UTC"
	return cfg
}

func newBotApp(t *testing.T) (*App, *router.Router, *recAdapter) {
	t.Helper()
	core, err := OpenCore(memoryConfig(), logx.Nop(), eventbus.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })

	a := &App{core: core, log: logx.Nop()}
	a.reminders = reminder.NewService(reminder.Config{}, core.Calendar, core.Store,
		reminder.DelivererFunc(func(context.Context, reminder.Reminder) error { return nil }), logx.Nop())
	a.actions = reminder.NewActions(core.Repo, core.Calendar, logx.Nop(), reminder.WithActionBus(core.Bus))

	ad := &recAdapter{}
	r := router.New(ad, logx.Nop(), 0)
	a.registerBot(r)
	return a, r, ad
}

func msg(text string) transport.Update {
	return transport.Update{Kind: transport.UpdateMessage, Message: &transport.Message{ChatID: 1, Text: text}}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()

	got, err := mapNotifierConfig(memoryConfig())
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, 500*time.Millisecond, got.RetryBase)
	assert.Equal(t, time.Minute, got.DedupWindow)

	cfg := memoryConfig()
	n := config.DefaultNotifier()
	n.RetryBase = "soon"
	cfg.Notifier = &n
	_, err = mapNotifierConfig(cfg)
	assert.ErrorContains(t, err, "notifier.retry_base")
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      config.StorageConfig
		driver  string
		wantErr bool
	}{
		{name: "empty is memory", in: config.StorageConfig{}, driver: "memory"},
		{name: "sqlite", in: config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "2s"}, driver: "sqlite"},
		{name: "file needs path", in: config.StorageConfig{Driver: "file"}, wantErr: true},
		{name: "unknown", in: config.StorageConfig{Driver: "redis", Path: "x"}, wantErr: true},
		{name: "bad timeout", in: config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "fast"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := memoryConfig()
			cfg.Storage = tc.in
			got, err := mapStorageConfig(cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.driver, got.Driver)
		})
	}
}

func TestMapCalendar(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig()
	cfg.Calendar = config.CalendarConfig{Timezone: "Europe/Berlin", FirstWeekday: "monday"}
	cal, err := mapCalendar(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cal.Zone().String())
	assert.Equal(t, time.Monday, cal.Weekday(1))
}

func TestReminderTarget(t *testing.T) {
	t.Parallel()
	ch, _ := reminderTarget(memoryConfig())
	assert.Equal(t, "log", ch)

	cfg := memoryConfig()
	cfg.Telegram = &config.TelegramConfig{Token: "t", ChatID: 42, ThreadID: 7}
	ch, to := reminderTarget(cfg)
	assert.Equal(t, "telegram", ch)
	assert.Equal(t, transport.ChatTarget{ChatID: 42, ThreadID: 7}, to)
}

func TestBot_WaterAndDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, r, ad := newBotApp(t)

	freq := 2
	p, err := a.core.Repo.CreatePlant(ctx, repository.PlantInput{Name: "Fern", Species: "Nephrolepis", WateringFrequencyInDays: &freq})
	require.NoError(t, err)

	r.Dispatch(ctx, msg("/plants"))
	r.Dispatch(ctx, msg("/due 1"))
	r.Dispatch(ctx, msg("/due 72"))
	r.Dispatch(ctx, msg("/water fern"))
	r.Dispatch(ctx, msg("/water"))
	r.Dispatch(ctx, msg("/due soon"))

	sent, _, _ := ad.snapshot()
	require.Len(t, sent, 6)
	assert.Equal(t, "• Fern (Nephrolepis)", sent[0])
	assert.Equal(t, "Nothing due in the next 1h.", sent[1])
	assert.Contains(t, sent[2], "• Fern: Watering (due ")
	assert.Equal(t, "Watered Fern.", sent[3])
	assert.Equal(t, "Usage: /water <plant>", sent[4])
	assert.Equal(t, "Error: hours must be a non-negative number", sent[5])

	acts, err := a.core.Repo.Activities(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, garden.ActivityWater, acts[0].Kind)
}

func TestBot_ActionCallback(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, r, ad := newBotApp(t)
	go a.actions.Run(ctx)

	freq := 3
	p, err := a.core.Repo.CreatePlant(ctx, repository.PlantInput{Name: "Fern", WateringFrequencyInDays: &freq})
	require.NoError(t, err)
	scheds, err := a.core.Repo.Schedules(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, scheds, 1)

	tap := transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{
		ID: "cb1", ChatID: 1, MessageID: 9,
		Data: reminder.Action{Kind: reminder.ActionComplete, ScheduleID: scheds[0].ID}.String(),
	}}

	// Actions.Run subscribes asynchronously; tap until the answer lands.
	require.Eventually(t, func() bool {
		r.Dispatch(ctx, tap)
		_, answers, _ := ad.snapshot()
		return len(answers) > 0
	}, 2*time.Second, 20*time.Millisecond)

	_, answers, edits := ad.snapshot()
	assert.Contains(t, answers[0], "Done. Next due ")
	assert.Equal(t, answers[0], edits[0])

	got, err := a.core.Repo.Schedule(ctx, scheds[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastCompletedAt)

	r.Dispatch(ctx, transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{ID: "cb2", ChatID: 1, Data: "bogus"}})
	require.Eventually(t, func() bool {
		_, answers, _ := ad.snapshot()
		return slices.Contains(answers, "Failed")
	}, time.Second, 10*time.Millisecond)
}
