package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published inside plantit.
const (
	ImportCommitted  = "import.committed"
	ReminderAction   = "reminder.action"
	ReminderFired    = "reminder.fired"
	ScheduleChanged  = "schedule.changed"
	ConfigReloaded   = "config.reloaded"
	NotifierSent     = "notifier.sent"
	NotifierFailed   = "notifier.failed"
	NotifierDeduped  = "notifier.deduped"
	NotifierDropped  = "notifier.dropped"
	NotifierEnqueued = "notifier.queued"
)

// Event is an in-process signal. Publish never blocks; a subscriber whose
// buffer is full misses the event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It starts no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Nop discards everything; Subscribe returns a channel that never fires.
func Nop() Bus { return nopBus{} }

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a buffered channel (default 8). unsubscribe closes it
// and is safe to call more than once.
func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			// Holding the write lock excludes in-flight Publish calls, so the
			// close can never race a send.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

type nopBus struct{}

func (nopBus) Publish(Event) {}

func (nopBus) Subscribe(int) (<-chan Event, func()) {
	return make(chan Event), func() {}
}
