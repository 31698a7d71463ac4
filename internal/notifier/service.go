package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"plantit/internal/eventbus"
	"plantit/internal/runtime/supervisor"
	"plantit/internal/storage"
	"plantit/internal/transport"
	logx "plantit/pkg/logx"
)

var (
	ErrDisabled  = errors.New("notifier disabled")
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const sendTimeout = 10 * time.Second

type job struct {
	n   transport.Notification
	key string
}

type dedupWrite struct {
	key   string
	until time.Time
}

// Service is the queue + worker pool. It is safe for concurrent use and can
// be restarted after Stop.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	limiter   *rate.Limiter
	accepting bool
	queue     chan job
	persist   chan dedupWrite
	sup       *supervisor.Supervisor
	stopping  chan struct{}
	inflight  sync.WaitGroup

	log     logx.Logger
	adapter transport.Adapter
	bus     eventbus.Bus
	store   storage.Store

	dmu   sync.Mutex
	dedup map[string]time.Time
}

// New builds a stopped service. store may be nil (no cross-restart dedup).
func New(cfg Config, adapter transport.Adapter, log logx.Logger, bus eventbus.Bus, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	s := &Service{
		log:     log.With(logx.Category(logx.CatNotifications)),
		adapter: adapter,
		bus:     bus,
		store:   store,
		dedup:   map[string]time.Time{},
	}
	s.apply(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the configuration. Worker and queue sizes take effect on the
// next Start; rate, retry and dedup settings apply immediately.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.apply(cfg)
	s.mu.Unlock()
}

func (s *Service) apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	cfg.RetryMax = max(cfg.RetryMax, 0)
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	cfg.DedupWindow = max(cfg.DedupWindow, 0)
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Start launches the workers. It is a no-op when disabled or already running.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if done := s.stopping; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil || !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	if s.store != nil {
		s.persist = make(chan dedupWrite, 256)
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log.With(logx.String("comp", "notifier"))))
	sup, q, pch, workers := s.sup, s.queue, s.persist, s.cfg.Workers
	s.mu.Unlock()

	if pch != nil {
		sup.GoRestart("notifier.dedup", func(c context.Context) error {
			s.persistLoop(c, pch)
			return nil
		}, 250*time.Millisecond, 5*time.Second)
	}
	for i := range workers {
		sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			return nil
		}, 250*time.Millisecond, 5*time.Second)
	}
	s.log.Info("notifier started", logx.Int("workers", workers))
}

// Stop refuses new notifications and drains the queue until ctx ends, after
// which in-flight sends are cancelled.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, pch, sup := s.queue, s.persist, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if done := s.stopping; done != nil {
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopping = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.inflight.Wait()
		close(q)
		if pch != nil {
			close(pch)
		}
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue, s.persist, s.sup, s.stopping = nil, nil, nil, nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = sup.Stop(ctx)
	}
}

// Notify enqueues n. A duplicate inside the dedup window is dropped silently.
func (s *Service) Notify(ctx context.Context, n transport.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	q, window, capacity, pch := s.queue, s.cfg.DedupWindow, s.cfg.DedupMaxEntries, s.persist
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	key := dedupKey(n)
	if window > 0 && !s.allow(ctx, key, window, capacity, pch) {
		s.emit(eventbus.NotifierDeduped, n, key, nil)
		return nil
	}

	s.emit(eventbus.NotifierEnqueued, n, key, nil)
	select {
	case q <- job{n: n, key: key}:
		return nil
	default:
		s.emit(eventbus.NotifierDropped, n, key, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) emit(typ string, n transport.Notification, key string, err error) {
	now := time.Now()
	ev := Event{Channel: n.Channel, ChatID: n.Target.ChatID, ThreadID: n.Target.ThreadID, Key: key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.send(ctx, j)
		}
	}
}

func (s *Service) persistLoop(ctx context.Context, ch <-chan dedupWrite) {
	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-ch:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
			if err := s.store.PutDedup(wctx, w.key, w.until); err != nil {
				s.log.Debug("dedup persist failed", logx.Err(err))
			}
			cancel()
		}
	}
}

func (s *Service) send(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim := s.cfg, s.limiter
	s.mu.Unlock()

	text := prefixForPriority(j.n.Priority) + j.n.Text
	attempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err := s.adapter.SendText(sctx, j.n.Target, text, j.n.Options)
		cancel()
		if err == nil {
			s.emit(eventbus.NotifierSent, j.n, j.key, nil)
			return
		}
		lastErr = err
		s.log.Debug("send failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", attempts))
		if attempt == attempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	s.log.Warn("notification dropped after retries", logx.Err(lastErr), logx.Int("attempts", attempts))
	s.emit(eventbus.NotifierFailed, j.n, j.key, lastErr)
}

func prefixForPriority(p int) string {
	switch {
	case p >= 9:
		return "🚨 "
	case p >= 7:
		return "⚠️ "
	case p >= 5:
		return "🌱 "
	default:
		return ""
	}
}

func dedupKey(n transport.Notification) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d:%d:%d|", n.Channel, n.Target.ChatID, n.Target.ThreadID, n.Priority)
	_, _ = h.Write([]byte(n.Text))
	return fmt.Sprintf("%x", h.Sum64())
}

// allow reports whether key is outside its suppression window, and if so
// opens a new window.
func (s *Service) allow(ctx context.Context, key string, window time.Duration, capacity int, pch chan<- dedupWrite) bool {
	now := time.Now()

	s.dmu.Lock()
	until, seen := s.dedup[key]
	s.dmu.Unlock()
	if seen && now.Before(until) {
		return false
	}

	if s.store != nil {
		qctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		until, ok, err := s.store.GetDedup(qctx, key)
		cancel()
		if err == nil && ok && now.Before(until) {
			s.dmu.Lock()
			s.dedup[key] = until
			s.dmu.Unlock()
			return false
		}
	}

	until = now.Add(window)
	s.dmu.Lock()
	s.dedup[key] = until
	for k, u := range s.dedup {
		if !now.Before(u) {
			delete(s.dedup, k)
		}
	}
	for len(s.dedup) > capacity {
		oldest, first := "", time.Time{}
		for k, u := range s.dedup {
			if oldest == "" || u.Before(first) {
				oldest, first = k, u
			}
		}
		delete(s.dedup, oldest)
	}
	s.dmu.Unlock()

	if pch != nil {
		select {
		case pch <- dedupWrite{key: key, until: until}:
		default:
		}
	}
	return true
}

// retryDelay is the wait before attempt+1: exponential from RetryBase,
// capped at RetryMaxDelay, with 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt && d < cfg.RetryMaxDelay; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
