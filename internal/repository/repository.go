package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/garden"
	"plantit/internal/reminder"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

var (
	ErrEmptyName = errors.New("name cannot be empty")
	ErrAmbiguous = errors.New("more than one match; use the id")
)

// InvalidError reports a field value the store would accept but the domain
// does not.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string { return e.Field + ": " + e.Reason }

type Option func(*Repository)

func WithSink(s reminder.Sink) Option { return func(r *Repository) { r.sink = s } }
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithSnooze sets the interval used when SnoozeSchedule gets a non-positive one.
func WithSnooze(d time.Duration) Option { return func(r *Repository) { r.snooze = d } }

// Repository runs every user-level mutation as one atomic store save and then
// re-arms or cancels reminders for the schedules it touched. Reminder calls
// happen after the save and never affect the result.
type Repository struct {
	store  storage.Store
	cal    cadence.Calendar
	log    logx.Logger
	sink   reminder.Sink
	now    func() time.Time
	snooze time.Duration
}

func New(store storage.Store, cal cadence.Calendar, log logx.Logger, opts ...Option) *Repository {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Repository{
		store:  store,
		cal:    cal,
		log:    log.With(logx.Category(logx.CatData)),
		sink:   reminder.NopSink{},
		now:    time.Now,
		snooze: garden.DefaultSnooze,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Calendar is the calendar used for every due-date computation.
func (r *Repository) Calendar() cadence.Calendar { return r.cal }

func (r *Repository) save(ctx context.Context, op string, cs *storage.ChangeSet) error {
	if err := r.store.Save(ctx, cs); err != nil {
		r.log.Error("save failed", logx.String("op", op), logx.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *Repository) arm(ctx context.Context, s garden.Schedule, plantName string) {
	if rem, ok := reminder.For(r.cal, s, plantName); ok {
		r.sink.ScheduleReminder(ctx, rem)
		return
	}
	r.sink.CancelReminder(ctx, s.ID)
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func notFound(kind, ref string, err error) error {
	return fmt.Errorf("%s %q: %w", kind, ref, err)
}
