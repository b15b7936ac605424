package auth

import (
	"context"
	"sync"
)

// State is the position of a Gate.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Subscriber is the session-change source a Gate listens to.
type Subscriber interface {
	Subscribe(fn Listener) (unsubscribe func())
}

// CurrentFunc reports the session of the caller, or an error when there is none.
type CurrentFunc func(ctx context.Context) (Session, error)

// Gate decides whether protected content may be shown. It starts loading,
// asks for the current session once, and then follows session changes until
// Unmount.
type Gate struct {
	mu          sync.Mutex
	state       State
	session     Session
	unsubscribe func()
	signedOut   chan struct{}
	closeOnce   sync.Once
}

// Mount creates a gate, subscribes it to subs, and resolves the current session.
func Mount(ctx context.Context, current CurrentFunc, subs Subscriber) *Gate {
	g := &Gate{state: StateLoading, signedOut: make(chan struct{})}
	// Subscribe before resolving so a change racing the lookup is not lost.
	g.unsubscribe = subs.Subscribe(g.handle)

	sess, err := current(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil || !sess.Valid() {
		g.state = StateUnauthenticated
		return g
	}
	g.state = StateAuthenticated
	g.session = sess
	return g
}

func (g *Gate) handle(ev Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateAuthenticated && ev.UserID != g.session.User.ID {
		return
	}
	switch ev.Type {
	case EventSignedOut:
		if g.state == StateAuthenticated {
			g.state = StateUnauthenticated
			g.session = Session{}
			g.closeOnce.Do(func() { close(g.signedOut) })
		}
	case EventSignedIn, EventTokenRefreshed:
		if g.state == StateAuthenticated && ev.Session != nil {
			g.session = *ev.Session
		}
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Session returns the session and true when authenticated.
func (g *Gate) Session() (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, g.state == StateAuthenticated
}

// SignedOut is closed when an authenticated gate sees its user sign out.
func (g *Gate) SignedOut() <-chan struct{} {
	return g.signedOut
}

// Unmount stops following session changes. Calling it again does nothing.
func (g *Gate) Unmount() {
	g.unsubscribe()
}
