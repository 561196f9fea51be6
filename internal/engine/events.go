package engine

import (
	"sync"
)

const maxEvents = 1000

// Event is a notable occurrence in the colony.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "death", "forage", "eat", "regurgitate", "command", "time"
	Meta        map[string]any `json:"meta,omitempty"`
}

// EventLog keeps the most recent events and fans new ones out to
// subscribers. It is safe for concurrent use.
type EventLog struct {
	mu     sync.RWMutex
	events []Event

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{subs: make(map[int]chan Event)}
}

// Emit records an event and delivers it to subscribers. Slow subscribers
// miss events rather than block the simulation.
func (l *EventLog) Emit(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	if len(l.events) > maxEvents {
		l.events = append(l.events[:0], l.events[len(l.events)-maxEvents:]...)
	}
	l.mu.Unlock()

	l.subMu.Lock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
		}
	}
	l.subMu.Unlock()
}

// Recent returns up to limit of the newest events, oldest first.
// A limit of zero or less returns everything retained.
func (l *EventLog) Recent(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if limit > 0 && len(l.events) > limit {
		start = len(l.events) - limit
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Subscribe registers a listener for new events.
func (l *EventLog) Subscribe() (int, <-chan Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextSub
	l.nextSub++
	ch := make(chan Event, 64)
	l.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (l *EventLog) Unsubscribe(id int) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	if ch, ok := l.subs[id]; ok {
		delete(l.subs, id)
		close(ch)
	}
}
