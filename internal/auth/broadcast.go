package auth

import (
	"log/slog"
	"sync"
)

// EventType identifies a session change.
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is a session change for one user.
type Event struct {
	Type    EventType
	UserID  string
	Session *Session // nil on sign-out
}

// Listener receives session changes. It is called synchronously and must not block.
type Listener func(Event)

// Broadcaster fans session changes out to subscribers.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	next      int
	logger    *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{listeners: make(map[int]Listener), logger: logger}
}

// Subscribe registers fn and returns the function that removes it.
// The returned function is safe to call more than once.
func (b *Broadcaster) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	key := b.next
	b.next++
	b.listeners[key] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, key)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Notify delivers ev to every subscriber.
func (b *Broadcaster) Notify(ev Event) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	if b.logger != nil {
		b.logger.Debug("session event",
			slog.String("type", string(ev.Type)),
			slog.String("user_id", ev.UserID),
			slog.Int("listeners", len(listeners)))
	}
	for _, fn := range listeners {
		fn(ev)
	}
}
