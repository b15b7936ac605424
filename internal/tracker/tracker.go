// Package tracker keeps the in-memory list of a user's books and reconciles
// local edits with the remote store.
//
// Every mutation runs in three phases: the change is applied to the local
// list and the caller gets control back, the store call runs in the
// background, and its answer either confirms the change or rolls it back.
package tracker

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lucidlyapp/lucidly/internal/domain"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/id"
)

// LoadState is the progress of the initial fetch.
type LoadState string

const (
	StateIdle    LoadState = "idle"
	StateLoading LoadState = "loading"
	StateReady   LoadState = "ready"
	StateFailed  LoadState = "failed"
)

// Failure is the content of the error slot.
type Failure struct {
	Op      string    `json:"op"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Tracker owns one user's list of books.
type Tracker struct {
	userID    string
	gw        gateway.Gateway
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time
	tempID    func() string

	mu      sync.Mutex
	scope   gateway.Scope
	state   LoadState
	books   []domain.Book
	failure *Failure
	loading chan struct{} // closed when the in-progress fetch ends
	loadErr error

	inflight sync.WaitGroup
}

// New creates an idle tracker for scope's user.
func New(scope gateway.Scope, gw gateway.Gateway, logger *slog.Logger, observers ...Observer) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		userID:    scope.UserID,
		gw:        gw,
		logger:    logger.With(slog.String("user_id", scope.UserID)),
		observers: observers,
		now:       time.Now,
		tempID:    id.Temp,
		scope:     scope,
		state:     StateIdle,
	}
}

// UserID returns the owner of the list.
func (t *Tracker) UserID() string { return t.userID }

// SetScope replaces the credentials used for later store calls.
func (t *Tracker) SetScope(scope gateway.Scope) {
	t.mu.Lock()
	t.scope = scope
	t.mu.Unlock()
}

// State returns the load state.
func (t *Tracker) State() LoadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Books returns a copy of the list.
func (t *Tracker) Books() []domain.Book {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.books)
}

// Book returns the record with bookID.
func (t *Tracker) Book(bookID string) (domain.Book, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(bookID); i >= 0 {
		return t.books[i], true
	}
	return domain.Book{}, false
}

// Error returns the error slot.
func (t *Tracker) Error() (Failure, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		return Failure{}, false
	}
	return *t.failure, true
}

// Dismiss clears the error slot without retrying anything.
func (t *Tracker) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failure == nil {
		return
	}
	t.failure = nil
	t.publish(ChangeDismissed, "")
}

// Load fetches the list the first time it is called. Concurrent callers share
// one fetch. After a failure the next call fetches again.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateReady:
		t.mu.Unlock()
		return nil
	case StateLoading:
		wait := t.loading
		t.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.loadErr
	}

	t.state = StateLoading
	t.books = nil
	t.loading = make(chan struct{})
	scope := t.scope
	t.publish(ChangeLoading, "")
	t.mu.Unlock()

	books, err := t.gw.ListBooks(context.WithoutCancel(ctx), scope)

	t.mu.Lock()
	defer t.mu.Unlock()
	defer close(t.loading)

	t.loadErr = err
	if err != nil {
		t.state = StateFailed
		t.fail(gateway.OpList, err)
		t.publish(ChangeFailed, "")
		t.logger.Warn("load failed", "error", err)
		return err
	}

	t.books = dedupe(books)
	t.state = StateReady
	t.publish(ChangeLoaded, "")
	t.logger.Debug("books loaded", "count", len(t.books))
	return nil
}

// Add prepends a provisional record built from draft and creates it in the
// store. The draft must already be validated.
func (t *Tracker) Add(ctx context.Context, draft domain.Draft) (domain.Book, *Ticket, error) {
	t.mu.Lock()
	if err := t.requireReady(); err != nil {
		t.mu.Unlock()
		return domain.Book{}, nil, err
	}

	provisional := draft.Provisional(t.tempID(), t.now().UTC())
	provisional.UserID = t.userID
	t.books = slices.Insert(t.books, 0, provisional)
	scope := t.scope
	ticket := newTicket(id.MustGenerate(id.PrefixTicket), gateway.OpCreate, provisional.ID)
	t.publish(ChangeAdded, provisional.ID)
	t.mu.Unlock()

	t.run(ctx, ticket, func(ctx context.Context) (domain.Book, error) {
		return t.gw.CreateBook(ctx, scope, draft)
	}, func(stored domain.Book, err error) {
		if err != nil {
			t.remove(provisional.ID)
			t.fail(gateway.OpCreate, err)
			t.publish(ChangeRolledBack, provisional.ID)
			return
		}
		i := t.indexOf(provisional.ID)
		if i < 0 {
			return
		}
		t.books[i] = stored
		t.removeDuplicates(stored.ID, i)
		t.publish(ChangeConfirmed, stored.ID)
	})

	return provisional, ticket, nil
}

// Update merges changes into the record and sends them to the store. The
// caller owns field coupling such as status and date_completed.
func (t *Tracker) Update(ctx context.Context, bookID string, changes domain.Changes) (*Ticket, error) {
	t.mu.Lock()
	i, err := t.mutable(bookID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	snapshot := t.books[i]
	t.books[i] = changes.Apply(snapshot)
	scope := t.scope
	ticket := newTicket(id.MustGenerate(id.PrefixTicket), gateway.OpUpdate, bookID)
	t.publish(ChangeUpdated, bookID)
	t.mu.Unlock()

	t.run(ctx, ticket, func(ctx context.Context) (domain.Book, error) {
		return t.gw.UpdateBook(ctx, scope, bookID, changes)
	}, func(stored domain.Book, err error) {
		i := t.indexOf(bookID)
		if err != nil {
			if i >= 0 {
				t.books[i] = snapshot
			}
			t.fail(gateway.OpUpdate, err)
			t.publish(ChangeRolledBack, bookID)
			return
		}
		if i >= 0 {
			t.books[i] = stored
		}
		t.publish(ChangeConfirmed, bookID)
	})

	return ticket, nil
}

// Delete removes the record and deletes it in the store. If the store refuses,
// the record comes back and the list is re-sorted by start date.
func (t *Tracker) Delete(ctx context.Context, bookID string) (*Ticket, error) {
	t.mu.Lock()
	i, err := t.mutable(bookID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	snapshot := t.books[i]
	t.books = slices.Delete(t.books, i, i+1)
	scope := t.scope
	ticket := newTicket(id.MustGenerate(id.PrefixTicket), gateway.OpDelete, bookID)
	t.publish(ChangeDeleted, bookID)
	t.mu.Unlock()

	t.run(ctx, ticket, func(ctx context.Context) (domain.Book, error) {
		return snapshot, t.gw.DeleteBook(ctx, scope, bookID)
	}, func(_ domain.Book, err error) {
		if err != nil {
			if t.indexOf(bookID) < 0 {
				t.books = append(t.books, snapshot)
				domain.SortByStartedDesc(t.books)
			}
			t.fail(gateway.OpDelete, err)
			t.publish(ChangeRolledBack, bookID)
			return
		}
		t.publish(ChangeConfirmed, bookID)
	})

	return ticket, nil
}

// Wait blocks until every store call issued so far has been reconciled.
func (t *Tracker) Wait() {
	t.inflight.Wait()
}

// run issues call in the background and reconciles its answer under the lock.
// The call outlives the request that triggered it.
func (t *Tracker) run(ctx context.Context, ticket *Ticket, call func(context.Context) (domain.Book, error), reconcile func(domain.Book, error)) {
	remoteCtx := context.WithoutCancel(ctx)
	t.inflight.Go(func() {
		book, err := call(remoteCtx)

		t.mu.Lock()
		reconcile(book, err)
		t.mu.Unlock()

		if err != nil {
			t.logger.Warn("store call failed, rolled back",
				slog.String("op", ticket.Op),
				slog.String("book_id", ticket.BookID),
				slog.String("ticket", ticket.ID),
				slog.String("error", err.Error()))
		}
		ticket.resolve(book, err)
	})
}

func (t *Tracker) requireReady() error {
	if t.state != StateReady {
		return domainerrors.Unavailable("books are still loading")
	}
	return nil
}

// mutable finds bookID and checks it can be changed. Caller holds t.mu.
func (t *Tracker) mutable(bookID string) (int, error) {
	if err := t.requireReady(); err != nil {
		return -1, err
	}
	i := t.indexOf(bookID)
	if i < 0 {
		return -1, domainerrors.NotFoundf("book %s not found", bookID)
	}
	if t.books[i].IsProvisional() {
		return -1, domainerrors.Conflict("this book is still being saved")
	}
	return i, nil
}

func (t *Tracker) indexOf(bookID string) int {
	return slices.IndexFunc(t.books, func(b domain.Book) bool { return b.ID == bookID })
}

func (t *Tracker) remove(bookID string) {
	if i := t.indexOf(bookID); i >= 0 {
		t.books = slices.Delete(t.books, i, i+1)
	}
}

// removeDuplicates drops every record with bookID except the one at keep.
func (t *Tracker) removeDuplicates(bookID string, keep int) {
	for j := len(t.books) - 1; j >= 0; j-- {
		if j != keep && t.books[j].ID == bookID {
			t.books = slices.Delete(t.books, j, j+1)
		}
	}
}

func (t *Tracker) fail(op string, err error) {
	t.failure = &Failure{Op: op, Message: gateway.Message(err), At: t.now().UTC()}
}

// publish notifies observers. Caller holds t.mu.
func (t *Tracker) publish(kind ChangeKind, bookID string) {
	if len(t.observers) == 0 {
		return
	}
	c := Change{
		UserID: t.userID,
		Kind:   kind,
		BookID: bookID,
		State:  t.state,
		Books:  slices.Clone(t.books),
	}
	if t.failure != nil {
		f := *t.failure
		c.Error = &f
	}
	for _, o := range t.observers {
		o.Observe(c)
	}
}

// dedupe keeps the first record of each id.
func dedupe(books []domain.Book) []domain.Book {
	seen := make(map[string]struct{}, len(books))
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
