package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"plantit/internal/garden"
)

// memStore keeps everything in process memory.
//
// The file driver embeds it and adds persistence via the commit hook.
type memStore struct {
	mu     sync.RWMutex
	g      *graph
	audit  []AuditEntry
	dedup  map[string]int64 // unix milli
	closed bool

	// commit runs with mu held after a change set applied cleanly to next.
	// Returning an error discards next.
	commit func(next *graph) error
}

func newMemStore() *memStore {
	return &memStore{g: newGraph(), dedup: map[string]int64{}}
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store { return newMemStore() }

func (s *memStore) read(fn func(g *graph) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.g)
}

func (s *memStore) Villages(ctx context.Context) ([]garden.Village, error) {
	var out []garden.Village
	err := s.read(func(g *graph) error { out = g.villages(); return nil })
	return out, err
}

func (s *memStore) Village(ctx context.Context, id string) (garden.Village, error) {
	var out garden.Village
	err := s.read(func(g *graph) error {
		v, ok := g.Villages[id]
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

func (s *memStore) Plants(ctx context.Context, f PlantFilter) ([]garden.Plant, error) {
	var out []garden.Plant
	err := s.read(func(g *graph) error { out = g.plants(f); return nil })
	return out, err
}

func (s *memStore) Plant(ctx context.Context, id string) (garden.Plant, error) {
	var out garden.Plant
	err := s.read(func(g *graph) error {
		p, ok := g.Plants[id]
		if !ok {
			return ErrNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (s *memStore) Activities(ctx context.Context, plantID string) ([]garden.Activity, error) {
	var out []garden.Activity
	err := s.read(func(g *graph) error { out = g.activities(plantID); return nil })
	return out, err
}

func (s *memStore) Schedules(ctx context.Context, f ScheduleFilter) ([]garden.Schedule, error) {
	var out []garden.Schedule
	err := s.read(func(g *graph) error { out = g.schedules(f); return nil })
	return out, err
}

func (s *memStore) Schedule(ctx context.Context, id string) (garden.Schedule, error) {
	var out garden.Schedule
	err := s.read(func(g *graph) error {
		sc, ok := g.Schedules[id]
		if !ok {
			return ErrNotFound
		}
		out = sc.Clone()
		return nil
	})
	return out, err
}

func (s *memStore) Photos(ctx context.Context, plantID string) ([]garden.Photo, error) {
	var out []garden.Photo
	err := s.read(func(g *graph) error { out = g.photos(plantID); return nil })
	return out, err
}

func (s *memStore) Save(ctx context.Context, cs *ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if cs.Len() == 0 {
		return nil
	}
	next := s.g.clone()
	if err := next.apply(cs); err != nil {
		return err
	}
	if s.commit != nil {
		if err := s.commit(next); err != nil {
			return err
		}
	}
	s.g = next
	return nil
}

func (s *memStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *memStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dedup[key] = until.UnixMilli()
	return nil
}

func (s *memStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, false, ErrClosed
	}
	ms, ok := s.dedup[key]
	if !ok || key == "" {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// Audit returns a copy of the recorded audit entries.
func (s *memStore) Audit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.audit...)
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
