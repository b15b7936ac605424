package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "lucidly-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath, nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func draft(title, started string) domain.Draft {
	return domain.Draft{
		Title:       title,
		Author:      "Author",
		DateStarted: domain.MustParseDate(started),
		Intention:   "because",
	}
}

var alice = gateway.Scope{UserID: "alice"}

func TestCreateBook(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	b, err := s.CreateBook(context.Background(), alice, draft("Dune", "2026-03-01"))
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.False(t, b.IsProvisional())
	assert.Equal(t, "alice", b.UserID)
	assert.Equal(t, domain.StatusReading, b.Status)
	assert.Equal(t, now, b.CreatedAt)

	books, err := s.ListBooks(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, b.ID, books[0].ID)
	assert.Equal(t, "2026-03-01", books[0].DateStarted.String())
}

func TestListBooks_ScopedAndOrdered(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateBook(ctx, alice, draft("Old", "2026-01-01"))
	require.NoError(t, err)
	_, err = s.CreateBook(ctx, alice, draft("New", "2026-02-01"))
	require.NoError(t, err)
	_, err = s.CreateBook(ctx, gateway.Scope{UserID: "bob"}, draft("Bob's", "2026-03-01"))
	require.NoError(t, err)

	books, err := s.ListBooks(ctx, alice)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "New", books[0].Title)
	assert.Equal(t, "Old", books[1].Title)
}

func TestListBooks_Empty(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	books, err := s.ListBooks(context.Background(), alice)
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)
}

func TestUpdateBook(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b, err := s.CreateBook(ctx, alice, draft("Dune", "2026-01-01"))
	require.NoError(t, err)

	later := b.CreatedAt.Add(time.Hour)
	s.now = func() time.Time { return later }

	updated, err := s.UpdateBook(ctx, alice, b.ID,
		domain.StatusChange(domain.StatusFinished, domain.MustParseDate("2026-02-01")))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFinished, updated.Status)
	assert.Equal(t, "2026-02-01", updated.DateCompleted.String())
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, "Dune", updated.Title)
}

func TestUpdateBook_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	notes := "x"
	_, err := s.UpdateBook(context.Background(), alice, "missing", domain.Changes{Notes: &notes})
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestUpdateBook_OtherUser(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b, err := s.CreateBook(ctx, alice, draft("Dune", "2026-01-01"))
	require.NoError(t, err)

	notes := "x"
	_, err = s.UpdateBook(ctx, gateway.Scope{UserID: "bob"}, b.ID, domain.Changes{Notes: &notes})
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestDeleteBook(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	b, err := s.CreateBook(ctx, alice, draft("Dune", "2026-01-01"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, alice, b.ID))
	require.NoError(t, s.DeleteBook(ctx, alice, b.ID), "deleting twice succeeds")

	books, err := s.ListBooks(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestNewInMemory(t *testing.T) {
	s, err := NewInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateBook(context.Background(), alice, draft("Dune", "2026-01-01"))
	require.NoError(t, err)
}

func TestBookKey(t *testing.T) {
	key := bookKey("u1", "b1")
	assert.Equal(t, "book:u1:b1", string(key))
	releaseKey(key)

	assert.Equal(t, "book:u1:", string(userPrefix("u1")))
}
