package tracker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
)

// fakeGateway is an in-memory store. fail decides per call whether it errors;
// hold, when set, blocks each call until a value is received.
type fakeGateway struct {
	mu    sync.Mutex
	books map[string]domain.Book
	seq   int
	calls []string
	fail  func(op string) bool
	hold  chan struct{}
	clock time.Time
}

func newFakeGateway(books ...domain.Book) *fakeGateway {
	f := &fakeGateway{
		books: make(map[string]domain.Book),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, b := range books {
		f.books[b.ID] = b
	}
	return f
}

func (f *fakeGateway) enter(op string) error {
	if f.hold != nil {
		<-f.hold
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.fail != nil && f.fail(op) {
		return gateway.Wrap(op, gateway.ErrBackend, op+" rejected by store")
	}
	return nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeGateway) ListBooks(_ context.Context, _ gateway.Scope) ([]domain.Book, error) {
	if err := f.enter(gateway.OpList); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(), nil
}

func (f *fakeGateway) CreateBook(_ context.Context, scope gateway.Scope, d domain.Draft) (domain.Book, error) {
	if err := f.enter(gateway.OpCreate); err != nil {
		return domain.Book{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	b := d.Provisional(fmt.Sprintf("srv-%d", f.seq), f.tick())
	b.UserID = scope.UserID
	f.books[b.ID] = b
	return b, nil
}

func (f *fakeGateway) UpdateBook(_ context.Context, _ gateway.Scope, id string, c domain.Changes) (domain.Book, error) {
	if err := f.enter(gateway.OpUpdate); err != nil {
		return domain.Book{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return domain.Book{}, gateway.Wrap(gateway.OpUpdate, gateway.ErrNotFound, "")
	}
	b = c.Apply(b)
	b.UpdatedAt = f.tick()
	f.books[id] = b
	return b, nil
}

func (f *fakeGateway) DeleteBook(_ context.Context, _ gateway.Scope, id string) error {
	if err := f.enter(gateway.OpDelete); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.books, id)
	return nil
}

// sorted returns the stored books newest start first. Caller holds f.mu.
func (f *fakeGateway) sorted() []domain.Book {
	out := make([]domain.Book, 0, len(f.books))
	for _, b := range f.books {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Book) int {
		if c := b.DateStarted.Compare(a.DateStarted); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// snapshot returns the stored books keyed by id.
func (f *fakeGateway) snapshot() map[string]domain.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.Book, len(f.books))
	for k, v := range f.books {
		out[k] = v
	}
	return out
}

// recorder collects published changes.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) Observe(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeKind, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Kind
	}
	return out
}
