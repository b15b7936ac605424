package tracker

import "github.com/lucidlyapp/lucidly/internal/domain"

// ChangeKind says what moved a tracker's state.
type ChangeKind string

const (
	ChangeLoading    ChangeKind = "loading"
	ChangeLoaded     ChangeKind = "loaded"
	ChangeAdded      ChangeKind = "added"
	ChangeUpdated    ChangeKind = "updated"
	ChangeDeleted    ChangeKind = "deleted"
	ChangeConfirmed  ChangeKind = "confirmed"
	ChangeRolledBack ChangeKind = "rolled_back"
	ChangeFailed     ChangeKind = "failed"
	ChangeDismissed  ChangeKind = "dismissed"
	ChangeEvicted    ChangeKind = "evicted"
)

// Change is a snapshot published after every state transition.
type Change struct {
	UserID string
	Kind   ChangeKind
	BookID string
	State  LoadState
	Books  []domain.Book // copy of the list after the change
	Error  *Failure
}

// Observer is told about every Change. Observers run with the tracker
// locked, so they must return quickly and must not call back into it.
type Observer interface {
	Observe(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// Observe implements Observer.
func (f ObserverFunc) Observe(c Change) { f(c) }
