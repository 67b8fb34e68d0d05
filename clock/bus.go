package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// SystemEvent is a transport-level notification published by the clock.
type SystemEvent int

const (
	EventStart SystemEvent = iota
	EventPlay
	EventPause
	EventStop
	// EventAllNotesOff asks outputs to silence every sounding note.
	EventAllNotesOff
)

func (e SystemEvent) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventStop:
		return "stop"
	case EventAllNotesOff:
		return "all-notes-off"
	}
	return "unknown"
}

// Notice is one published system event.
type Notice struct {
	Event SystemEvent
	Time  time.Time
	Beat  float64
}

// Bus fans notices out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the notice.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Notice
	seq  atomic.Uint64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[uint64]chan Notice{}}
}

// Publish delivers n to every subscriber that has room for it.
func (b *Bus) Publish(n Notice) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	b.mu.RLock()
	chs := make([]chan Notice, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// a concurrent unsubscribe may have closed ch
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- n:
			default:
			}
		}()
	}
}

// Subscribe returns a buffered channel of notices and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Notice, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}
