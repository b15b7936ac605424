package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
	"github.com/lucidlyapp/lucidly/internal/id"
)

var _ gateway.Gateway = (*Store)(nil)

// ListBooks implements gateway.Gateway.
func (s *Store) ListBooks(_ context.Context, scope gateway.Scope) ([]domain.Book, error) {
	books := []domain.Book{}
	prefix := userPrefix(scope.UserID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b domain.Book
			if err := get(txn, it.Item().KeyCopy(nil), &b); err != nil {
				return fmt.Errorf("decode book: %w", err)
			}
			books = append(books, b)
		}
		return nil
	})
	if err != nil {
		return nil, gateway.Wrap(gateway.OpList, gateway.ErrBackend, err.Error())
	}

	// Keys are ordered by id; present newest start first, then newest insert.
	slices.SortStableFunc(books, func(a, b domain.Book) int {
		if c := b.DateStarted.Compare(a.DateStarted); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return books, nil
}

// CreateBook implements gateway.Gateway.
func (s *Store) CreateBook(ctx context.Context, scope gateway.Scope, draft domain.Draft) (domain.Book, error) {
	now := s.now().UTC()
	book := draft.Provisional(id.Record(), now)
	book.UserID = scope.UserID

	key := bookKey(scope.UserID, book.ID)
	defer releaseKey(key)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return set(txn, key, book)
	}); err != nil {
		return domain.Book{}, gateway.Wrap(gateway.OpCreate, gateway.ErrBackend, err.Error())
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "book created",
			slog.String("id", book.ID),
			slog.String("user_id", scope.UserID),
		)
	}
	return book, nil
}

// UpdateBook implements gateway.Gateway.
func (s *Store) UpdateBook(_ context.Context, scope gateway.Scope, bookID string, changes domain.Changes) (domain.Book, error) {
	key := bookKey(scope.UserID, bookID)
	defer releaseKey(key)

	var book domain.Book
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := get(txn, key, &book); err != nil {
			return err
		}
		book = changes.Apply(book)
		book.UpdatedAt = s.now().UTC()
		return set(txn, key, book)
	})
	switch {
	case isNotFound(err):
		return domain.Book{}, gateway.Wrap(gateway.OpUpdate, gateway.ErrNotFound, "")
	case err != nil:
		return domain.Book{}, gateway.Wrap(gateway.OpUpdate, gateway.ErrBackend, err.Error())
	}
	return book, nil
}

// DeleteBook implements gateway.Gateway. Deleting a missing book succeeds.
func (s *Store) DeleteBook(_ context.Context, scope gateway.Scope, bookID string) error {
	key := bookKey(scope.UserID, bookID)
	defer releaseKey(key)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return gateway.Wrap(gateway.OpDelete, gateway.ErrBackend, err.Error())
	}
	return nil
}
