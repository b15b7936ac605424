package tracker

import (
	"context"

	"github.com/lucidlyapp/lucidly/internal/domain"
)

// Ticket follows one mutation until the store has answered and the local list
// has been reconciled.
type Ticket struct {
	ID     string
	Op     string
	BookID string // for adds, the temporary id

	done chan struct{}
	book domain.Book
	err  error
}

func newTicket(id, op, bookID string) *Ticket {
	return &Ticket{ID: id, Op: op, BookID: bookID, done: make(chan struct{})}
}

func (t *Ticket) resolve(book domain.Book, err error) {
	t.book = book
	t.err = err
	close(t.done)
}

// Done is closed once the mutation has been confirmed or rolled back.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until reconciliation and returns the store's error, if any.
// It returns ctx's error if ctx ends first; the mutation carries on regardless.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Book returns the record the store confirmed. Valid after Done for adds and updates.
func (t *Ticket) Book() domain.Book {
	<-t.done
	return t.book
}
