package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"plantit/internal/cadence"
	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/runtime/supervisor"
	"plantit/internal/storage"
	logx "plantit/pkg/logx"
)

const (
	deliverTimeout = 15 * time.Second
	digestTitle    = "Plants need care"
)

// Config controls the scheduler.
type Config struct {
	Enabled bool
	// DigestCron is a 5-field cron spec; empty disables the digest.
	DigestCron string
	// ReconcileEvery re-arms all timers from the store; 0 disables.
	ReconcileEvery time.Duration
}

// Deliverer hands a due reminder to a transport.
type Deliverer interface {
	Deliver(ctx context.Context, r Reminder) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, r Reminder) error

func (f DelivererFunc) Deliver(ctx context.Context, r Reminder) error { return f(ctx, r) }

type pending struct {
	r     Reminder
	timer *time.Timer
}

// Service is the long-running Sink: one one-shot timer per schedule id plus
// a cron digest of everything overdue. Reminders whose time has already
// passed are not armed; the digest reports them.
type Service struct {
	cfg   Config
	cal   cadence.Calendar
	store storage.Store
	out   Deliverer
	log   logx.Logger
	bus   eventbus.Bus
	now   func() time.Time

	mu      sync.Mutex
	running bool
	sup     *supervisor.Supervisor
	cron    *cron.Cron
	fired   chan Reminder
	timers  map[string]*pending
}

type Option func(*Service)

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(cfg Config, cal cadence.Calendar, store storage.Store, out Deliverer, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:    cfg,
		cal:    cal,
		store:  store,
		out:    out,
		log:    log.With(logx.Category(logx.CatNotifications), logx.String("comp", "reminders")),
		bus:    eventbus.Nop(),
		now:    time.Now,
		timers: map[string]*pending{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start restores timers from the store and starts the digest. It is a no-op
// when disabled or already running.
func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("reminders disabled")
		return nil
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	var c *cron.Cron
	if spec := strings.TrimSpace(s.cfg.DigestCron); spec != "" {
		c = cron.New(cron.WithLocation(s.cal.Zone()))
		if _, err := c.AddFunc(spec, func() { s.runDigest() }); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("digest cron %q: %w", spec, err)
		}
	}

	s.running = true
	s.cron = c
	s.fired = make(chan Reminder, 64)
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	sup, fired := s.sup, s.fired
	s.mu.Unlock()

	sup.GoRestart("reminders.deliver", func(c context.Context) error {
		s.deliverLoop(c, fired)
		return nil
	}, 250*time.Millisecond, 5*time.Second)

	if err := s.Reconcile(ctx); err != nil {
		s.log.Warn("initial reconcile failed", logx.Err(err))
	}
	if every := s.cfg.ReconcileEvery; every > 0 {
		sup.Go0("reminders.reconcile", func(c context.Context) {
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					if err := s.Reconcile(c); err != nil {
						s.log.Warn("reconcile failed", logx.Err(err))
					}
				}
			}
		})
	}
	if c != nil {
		c.Start()
	}
	s.log.Info("reminders started", logx.String("digest", s.cfg.DigestCron), logx.Int("pending", len(s.Pending())))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	for id, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, id)
	}
	c, sup := s.cron, s.sup
	s.cron, s.sup = nil, nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	err := sup.Stop(ctx)
	s.log.Info("reminders stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ScheduleReminder arms (or re-arms) the timer for r.ScheduleID.
func (s *Service) ScheduleReminder(_ context.Context, r Reminder) {
	if r.ScheduleID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.disarmLocked(r.ScheduleID)

	delay := r.At.Sub(s.now())
	if delay <= 0 {
		s.log.Debug("reminder past due, left to digest", logx.String("schedule_id", r.ScheduleID))
		return
	}
	id := r.ScheduleID
	p := &pending{r: r}
	p.timer = time.AfterFunc(delay, func() { s.fire(id, p) })
	s.timers[id] = p
	s.log.Debug("reminder armed", logx.String("schedule_id", id), logx.Time("at", r.At))
}

func (s *Service) CancelReminder(_ context.Context, scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(scheduleID)
}

func (s *Service) disarmLocked(id string) {
	if p, ok := s.timers[id]; ok {
		p.timer.Stop()
		delete(s.timers, id)
	}
}

// Pending lists armed reminders, soonest first.
func (s *Service) Pending() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.timers))
	for _, p := range s.timers {
		out = append(out, p.r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].ScheduleID < out[j].ScheduleID
	})
	return out
}

// fire delivers p unless it was replaced or cancelled after its timer
// started running.
func (s *Service) fire(id string, p *pending) {
	s.mu.Lock()
	if s.timers[id] != p || !s.running {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	fired := s.fired
	s.mu.Unlock()

	select {
	case fired <- p.r:
	default:
		s.log.Warn("reminder dropped, delivery backlog full", logx.String("schedule_id", id))
	}
}

func (s *Service) deliverLoop(ctx context.Context, fired <-chan Reminder) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-fired:
			s.deliver(ctx, r)
		}
	}
}

func (s *Service) deliver(ctx context.Context, r Reminder) {
	dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := s.out.Deliver(dctx, r); err != nil {
		s.log.Warn("reminder delivery failed", logx.String("schedule_id", r.ScheduleID), logx.Err(err))
		return
	}
	s.bus.Publish(eventbus.Event{Type: eventbus.ReminderFired, Time: s.now(), Data: r})
}

// Reconcile re-arms a timer for every schedule in the store and drops
// timers whose schedule is gone.
func (s *Service) Reconcile(ctx context.Context) error {
	scheds, err := s.store.Schedules(ctx, storage.ScheduleFilter{})
	if err != nil {
		return err
	}
	names, err := s.plantNames(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]bool, len(scheds))
	for _, sc := range scheds {
		live[sc.ID] = true
		if r, ok := For(s.cal, sc, names[sc.PlantID]); ok {
			s.ScheduleReminder(ctx, r)
		} else {
			s.CancelReminder(ctx, sc.ID)
		}
	}

	s.mu.Lock()
	for id := range s.timers {
		if !live[id] {
			s.disarmLocked(id)
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Service) plantNames(ctx context.Context) (map[string]string, error) {
	plants, err := s.store.Plants(ctx, storage.PlantFilter{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(plants))
	for _, p := range plants {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (s *Service) runDigest() {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return
	}
	ctx, cancel := context.WithTimeout(sup.Context(), deliverTimeout)
	defer cancel()
	if _, err := s.Digest(ctx); err != nil {
		s.log.Warn("digest failed", logx.Err(err))
	}
}

// Digest delivers one summary of every overdue schedule. It returns the
// number of schedules reported; nothing is sent when none are overdue.
func (s *Service) Digest(ctx context.Context) (int, error) {
	r, n, err := s.BuildDigest(ctx)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := s.out.Deliver(ctx, r); err != nil {
		return 0, err
	}
	s.log.Info("digest sent", logx.Int("overdue", n))
	return n, nil
}

// BuildDigest renders the overdue summary without delivering it.
func (s *Service) BuildDigest(ctx context.Context) (Reminder, int, error) {
	now := s.now()
	due, err := s.store.Schedules(ctx, storage.ScheduleFilter{DueBy: &now})
	if err != nil {
		return Reminder{}, 0, err
	}
	if len(due) == 0 {
		return Reminder{}, 0, nil
	}
	names, err := s.plantNames(ctx)
	if err != nil {
		return Reminder{}, 0, err
	}
	return Reminder{
		Title: digestTitle,
		Body:  DueList(s.cal, due, names),
		At:    now.Truncate(time.Minute),
	}, len(due), nil
}

// DueList renders one "• Plant: Kind (due Jan 2 15:04)" line per schedule.
// names maps plant id to plant name. Schedules without a due date are skipped.
func DueList(cal cadence.Calendar, due []garden.Schedule, names map[string]string) string {
	var b strings.Builder
	for _, sc := range due {
		if sc.NextDueAt == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		name := names[sc.PlantID]
		if name == "" {
			name = fallbackTitle
		}
		fmt.Fprintf(&b, "• %s: %s (due %s)", name, sc.Kind.DisplayName(), cal.In(*sc.NextDueAt).Format("Jan 2 15:04"))
	}
	return b.String()
}
