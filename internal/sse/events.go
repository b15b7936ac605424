// Package sse implements Server-Sent Events so open pages refresh when a
// user's books, error banner, or session change.
package sse

import (
	"time"

	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is the first event of every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventBooksChanged is sent after any change to the user's list.
	EventBooksChanged EventType = "books.changed"
	// EventErrorRaised is sent when a store call failed and was rolled back.
	EventErrorRaised EventType = "error.raised"
	// EventErrorDismissed is sent when the error banner is cleared.
	EventErrorDismissed EventType = "error.dismissed"

	// EventSignedOut closes the stream of a user who signed out.
	EventSignedOut EventType = "session.signed_out"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID limits delivery to one user's clients. Not sent to the client.
	UserID string `json:"-"`
}

// BooksChangedEventData is the payload of books.changed.
type BooksChangedEventData struct {
	Kind   tracker.ChangeKind `json:"kind"`
	BookID string             `json:"book_id,omitempty"`
	State  tracker.LoadState  `json:"state"`
	Count  int                `json:"count"`
}

// ErrorEventData is the payload of error.raised.
type ErrorEventData struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// HeartbeatEventData is the payload of heartbeat.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewBooksChangedEvent creates a books.changed event for a tracker change.
func NewBooksChangedEvent(c tracker.Change) Event {
	return Event{
		Type: EventBooksChanged,
		Data: BooksChangedEventData{
			Kind:   c.Kind,
			BookID: c.BookID,
			State:  c.State,
			Count:  len(c.Books),
		},
		Timestamp: time.Now(),
		UserID:    c.UserID,
	}
}

// NewErrorRaisedEvent creates an error.raised event.
func NewErrorRaisedEvent(userID string, f tracker.Failure) Event {
	return Event{
		Type:      EventErrorRaised,
		Data:      ErrorEventData{Op: f.Op, Message: f.Message},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewErrorDismissedEvent creates an error.dismissed event.
func NewErrorDismissedEvent(userID string) Event {
	return Event{
		Type:      EventErrorDismissed,
		Data:      struct{}{},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewSignedOutEvent creates a session.signed_out event.
func NewSignedOutEvent(userID string) Event {
	return Event{
		Type:      EventSignedOut,
		Data:      struct{}{},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
