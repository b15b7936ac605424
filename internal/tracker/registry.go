package tracker

import (
	"log/slog"
	"sync"

	"github.com/lucidlyapp/lucidly/internal/gateway"
)

// Registry hands out one Tracker per signed-in user.
type Registry struct {
	gw        gateway.Gateway
	logger    *slog.Logger
	observers []Observer

	mu       sync.Mutex
	trackers map[string]*Tracker
	// draining holds evicted trackers until their in-flight calls resolve.
	draining map[*Tracker]struct{}
}

// NewRegistry creates an empty registry whose trackers share gw and observers.
func NewRegistry(gw gateway.Gateway, logger *slog.Logger, observers ...Observer) *Registry {
	return &Registry{
		gw:        gw,
		logger:    logger,
		observers: observers,
		trackers:  make(map[string]*Tracker),
		draining:  make(map[*Tracker]struct{}),
	}
}

// For returns the tracker of scope's user, creating it on first use. The
// tracker's credentials are replaced with scope's on every call.
func (r *Registry) For(scope gateway.Scope) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.trackers[scope.UserID]; ok {
		t.SetScope(scope)
		return t
	}
	t := New(scope, r.gw, r.logger, r.observers...)
	r.trackers[scope.UserID] = t
	return t
}

// Lookup returns the tracker of userID if one exists.
func (r *Registry) Lookup(userID string) (*Tracker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[userID]
	return t, ok
}

// Evict drops the tracker of userID. Store calls already in flight still
// finish, and Wait keeps waiting for them.
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	t, ok := r.trackers[userID]
	if ok {
		delete(r.trackers, userID)
		r.draining[t] = struct{}{}
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	go r.drain(t)

	for _, o := range r.observers {
		o.Observe(Change{UserID: userID, Kind: ChangeEvicted, State: StateIdle})
	}
	if r.logger != nil {
		r.logger.Debug("tracker evicted", "user_id", userID)
	}
}

func (r *Registry) drain(t *Tracker) {
	t.Wait()
	r.mu.Lock()
	delete(r.draining, t)
	r.mu.Unlock()
}

// Len returns the number of live trackers. Evicted trackers still draining
// are not counted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}

// Wait blocks until every tracker's in-flight store calls have been
// reconciled, including those of trackers evicted while their calls ran.
func (r *Registry) Wait() {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers)+len(r.draining))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	for t := range r.draining {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	for _, t := range trackers {
		t.Wait()
	}
}
