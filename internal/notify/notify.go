// Package notify raises the blocking duplicate-enrollment warning and
// tracks whether the operator has acknowledged it.
package notify

import (
	"sync"
	"time"
)

// DuplicateTitle is the heading shown with every duplicate warning.
const DuplicateTitle = "Face Already Enrolled!"

const listenerBuffer = 8

// DuplicateWarning is raised when the backend rejects an enrollment because
// the face is already on record. Message is the backend text, verbatim.
type DuplicateWarning struct {
	Message     string    `json:"message"`
	AdmissionNo string    `json:"admission_no,omitempty"`
	Name        string    `json:"name,omitempty"`
	RaisedAt    time.Time `json:"raised_at"`
}

// Title returns the warning heading.
func (w DuplicateWarning) Title() string {
	return DuplicateTitle
}

// Notifier shows a duplicate warning to the operator.
type Notifier interface {
	ShowDuplicate(w DuplicateWarning)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(w DuplicateWarning)

// ShowDuplicate calls f(w).
func (f NotifierFunc) ShowDuplicate(w DuplicateWarning) { f(w) }

// Event is sent to board listeners.
type Event struct {
	Type    string            `json:"type"` // "raised" or "acknowledged"
	Warning *DuplicateWarning `json:"warning,omitempty"`
}

// Board holds the pending warning until it is acknowledged and fans
// changes out to listeners.
type Board struct {
	mu        sync.RWMutex
	pending   *DuplicateWarning
	listeners []chan Event
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{}
}

// ShowDuplicate implements Notifier. A new warning replaces an unacknowledged one.
func (b *Board) ShowDuplicate(w DuplicateWarning) {
	if w.RaisedAt.IsZero() {
		w.RaisedAt = time.Now()
	}

	b.mu.Lock()
	b.pending = &w
	b.mu.Unlock()

	b.send(Event{Type: "raised", Warning: &w})
}

// Pending returns the unacknowledged warning, if any.
func (b *Board) Pending() (DuplicateWarning, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.pending == nil {
		return DuplicateWarning{}, false
	}
	return *b.pending, true
}

// Acknowledge clears the pending warning. It reports whether there was one.
func (b *Board) Acknowledge() bool {
	b.mu.Lock()
	had := b.pending != nil
	b.pending = nil
	b.mu.Unlock()

	if had {
		b.send(Event{Type: "acknowledged"})
	}
	return had
}

// AddListener registers a listener channel.
func (b *Board) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, listenerBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener unregisters and closes a listener channel.
func (b *Board) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *Board) send(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- ev:
		default:
			// Listener buffer full, skip.
		}
	}
}
