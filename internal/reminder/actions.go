package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"plantit/internal/cadence"
	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

type ActionKind string

const (
	ActionComplete ActionKind = "complete"
	ActionSnooze   ActionKind = "snooze"
)

var ErrBadAction = errors.New("malformed reminder action")

// Action is what a user picked on a delivered reminder.
type Action struct {
	Kind       ActionKind
	ScheduleID string
}

// String is the wire form carried in button payloads: "<kind>|<schedule id>".
func (a Action) String() string { return string(a.Kind) + "|" + a.ScheduleID }

func ParseAction(data string) (Action, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(data), "|")
	if !ok || id == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrBadAction, data)
	}
	switch k := ActionKind(kind); k {
	case ActionComplete, ActionSnooze:
		return Action{Kind: k, ScheduleID: id}, nil
	default:
		return Action{}, fmt.Errorf("%w: unknown kind %q", ErrBadAction, kind)
	}
}

// ActionEvent is the payload of eventbus.ReminderAction. Reply, when set,
// receives a one-line outcome for the user.
type ActionEvent struct {
	Action Action
	Reply  func(ctx context.Context, text string)
}

// Handler performs the schedule mutations. The repository implements it.
type Handler interface {
	CompleteSchedule(ctx context.Context, id string, at time.Time) (garden.Schedule, error)
	SnoozeSchedule(ctx context.Context, id string, interval time.Duration) (garden.Schedule, error)
}

// Auditor records action outcomes; storage.Store implements it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Actions is the single path for reminder actions, whichever transport they
// arrive from.
type Actions struct {
	h      Handler
	cal    cadence.Calendar
	audit  Auditor
	bus    eventbus.Bus
	log    logx.Logger
	now    func() time.Time
	snooze time.Duration
}

type ActionsOption func(*Actions)

func WithAuditor(a Auditor) ActionsOption { return func(x *Actions) { x.audit = a } }
func WithActionBus(b eventbus.Bus) ActionsOption {
	return func(x *Actions) { x.bus = b }
}

// WithSnoozeInterval sets the interval used for snooze actions (0 leaves
// the handler's default).
func WithSnoozeInterval(d time.Duration) ActionsOption {
	return func(x *Actions) { x.snooze = d }
}

func WithActionClock(now func() time.Time) ActionsOption {
	return func(x *Actions) { x.now = now }
}

func NewActions(h Handler, cal cadence.Calendar, log logx.Logger, opts ...ActionsOption) *Actions {
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Actions{
		h:   h,
		cal: cal,
		bus: eventbus.Nop(),
		log: log.With(logx.Category(logx.CatNotifications), logx.String("comp", "actions")),
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Handle applies act and returns the updated schedule.
func (a *Actions) Handle(ctx context.Context, act Action) (garden.Schedule, error) {
	var (
		s   garden.Schedule
		err error
	)
	switch act.Kind {
	case ActionComplete:
		s, err = a.h.CompleteSchedule(ctx, act.ScheduleID, a.now())
	case ActionSnooze:
		s, err = a.h.SnoozeSchedule(ctx, act.ScheduleID, a.snooze)
	default:
		err = fmt.Errorf("%w: unknown kind %q", ErrBadAction, act.Kind)
	}

	a.record(ctx, act, s, err)
	if err != nil {
		a.log.Warn("reminder action failed", logx.String("action", act.String()), logx.Err(err))
		return garden.Schedule{}, err
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ScheduleChanged, Time: a.now(), Data: s})
	a.log.Info("reminder action", logx.String("action", string(act.Kind)), logx.String("schedule_id", act.ScheduleID))
	return s, nil
}

func (a *Actions) record(ctx context.Context, act Action, s garden.Schedule, err error) {
	if a.audit == nil {
		return
	}
	e := storage.AuditEntry{
		At:        a.now(),
		Subsystem: "reminder",
		Action:    string(act.Kind),
		Target:    act.ScheduleID,
		OK:        err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	} else if s.NextDueAt != nil {
		meta, _ := json.Marshal(map[string]time.Time{"next_due_at": *s.NextDueAt})
		e.MetaJSON = string(meta)
	}
	if aerr := a.audit.AppendAudit(ctx, e); aerr != nil {
		a.log.Debug("audit append failed", logx.Err(aerr))
	}
}

// Reply renders the user-facing outcome of Handle.
func (a *Actions) Reply(act Action, s garden.Schedule, err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "That schedule no longer exists."
	case err != nil:
		return "Could not update the schedule."
	}
	verb := "Done"
	if act.Kind == ActionSnooze {
		verb = "Snoozed"
	}
	if s.NextDueAt == nil {
		return verb + "."
	}
	return fmt.Sprintf("%s. Next due %s.", verb, a.cal.In(*s.NextDueAt).Format("Jan 2 15:04"))
}

// Run consumes eventbus.ReminderAction events until ctx ends.
func (a *Actions) Run(ctx context.Context) {
	events, unsubscribe := a.bus.Subscribe(32)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != eventbus.ReminderAction {
				continue
			}
			ae, ok := ev.Data.(ActionEvent)
			if !ok {
				continue
			}
			s, err := a.Handle(ctx, ae.Action)
			if ae.Reply != nil {
				ae.Reply(ctx, a.Reply(ae.Action, s, err))
			}
		}
	}
}
