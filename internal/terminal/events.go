package terminal

import (
	"sync"
	"time"
)

// Event types emitted by the kiosk terminal.
const (
	EventCheckIn         = "check_in"
	EventCheckOut        = "check_out"
	EventCheckoutBlocked = "checkout_blocked"
	EventAlreadyDone     = "already_done"
	EventNoMatch         = "no_match"
	EventError           = "error"
)

// eventChannelBuffer is the per-listener buffer; slow SSE clients drop
// events rather than stalling the capture loop.
const eventChannelBuffer = 16

// Event is one terminal occurrence pushed to SSE listeners.
type Event struct {
	Type     string    `json:"type"`
	StaffID  int64     `json:"staff_id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Message  string    `json:"message,omitempty"`
	Distance float64   `json:"distance,omitempty"`
	At       time.Time `json:"at"`
}

// EventBroadcaster provides listener management and event broadcasting for
// the terminal loop.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
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

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// ListenerCount returns the number of connected listeners.
func (b *EventBroadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
