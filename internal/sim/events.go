package sim

import (
	"fmt"
	"sync"
	"time"
)

const maxEvents = 100

// Event is one line of the operator-facing event log.
type Event struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// EventLog keeps the most recent events, newest first.
type EventLog struct {
	mu      sync.Mutex
	entries []Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Addf records a formatted event.
func (l *EventLog) Addf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Event{Time: time.Now().UTC(), Message: fmt.Sprintf(format, args...)}
	l.entries = append([]Event{e}, l.entries...)
	if len(l.entries) > maxEvents {
		l.entries = l.entries[:maxEvents]
	}
}

// Replace swaps the whole log, used when restoring a saved state.
func (l *EventLog) Replace(entries []Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > maxEvents {
		entries = entries[:maxEvents]
	}
	l.entries = append([]Event(nil), entries...)
}

// List returns a copy of the log, newest first.
func (l *EventLog) List() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}
