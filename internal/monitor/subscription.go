package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutputEvent is one increment of session output delivered to subscribers.
// It is ephemeral: not retained beyond the ring buffer and live channels.
type OutputEvent struct {
	SessionID string
	Delta     string
	Time      time.Time
}

// Subscription is a live output stream for one session. Each subscriber
// owns a bounded channel; delivery preserves emission order, and when a
// subscriber falls behind the oldest undelivered event is dropped rather
// than blocking the poll cycle.
type Subscription struct {
	id        string
	sessionID string
	ch        chan OutputEvent
	m         *Monitor
	closeOnce sync.Once
}

// newSubscription creates a subscription with the given channel capacity.
func newSubscription(m *Monitor, sessionID string, capacity int) *Subscription {
	return &Subscription{
		id:        uuid.NewString(),
		sessionID: sessionID,
		ch:        make(chan OutputEvent, capacity),
		m:         m,
	}
}

// Events returns the subscriber's receive channel. It is closed when the
// subscription is cancelled or the monitor stops.
func (s *Subscription) Events() <-chan OutputEvent {
	return s.ch
}

// SessionID returns the session this subscription follows.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Cancel detaches the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Cancel() {
	s.m.unsubscribe(s)
}

// push delivers an event without blocking. A full channel sheds its oldest
// event first so a stalled subscriber only loses history, never stalls the
// monitor.
func (s *Subscription) push(ev OutputEvent) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// close closes the subscriber channel exactly once. Callers must hold the
// monitor's write lock so no push races the close.
func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}
