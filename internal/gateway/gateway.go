// Package gateway defines the contract between the reading tracker and the
// remote row store holding a user's books.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucidlyapp/lucidly/internal/domain"
)

// Scope is the capability a call runs under: whose books, and the bearer
// token the store authorizes the call with. Backends that trust the caller
// (postgres, local) use only UserID.
type Scope struct {
	UserID      string
	AccessToken string
}

// Gateway is a remote book store. Every method is scoped to one user.
type Gateway interface {
	// ListBooks returns all books of the user, newest start date first.
	ListBooks(ctx context.Context, scope Scope) ([]domain.Book, error)
	// CreateBook inserts a book with status reading and returns the stored record.
	CreateBook(ctx context.Context, scope Scope, draft domain.Draft) (domain.Book, error)
	// UpdateBook applies changes, refreshes updated_at, and returns the stored record.
	UpdateBook(ctx context.Context, scope Scope, id string, changes domain.Changes) (domain.Book, error)
	// DeleteBook removes a book.
	DeleteBook(ctx context.Context, scope Scope, id string) error
}

// Operation names used in errors and logs.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Sentinel errors for store failures.
var (
	ErrNotFound     = errors.New("book not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrTimeout      = errors.New("store timed out")
	ErrBackend      = errors.New("store error")
)

// Error is a store failure. Message carries the backend's own wording and is
// what users see in the error banner.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s books: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an Error. An empty message falls back to the sentinel's text.
func Wrap(op string, sentinel error, message string) error {
	if message == "" {
		message = sentinel.Error()
	}
	return &Error{Op: op, Message: message, Err: sentinel}
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return err.Error()
}
