package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/gateway"
)

const bookColumns = `id, user_id, title, author, status, date_started, date_completed, intention, notes, created_at, updated_at`

// Books is a gateway.Gateway over the books table.
type Books struct {
	db      *DB
	timeout time.Duration
	logger  *slog.Logger
}

var _ gateway.Gateway = (*Books)(nil)

// NewBooks creates the gateway. A zero timeout leaves calls unbounded.
func NewBooks(db *DB, timeout time.Duration, logger *slog.Logger) *Books {
	return &Books{db: db, timeout: timeout, logger: logger}
}

func (b *Books) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// ListBooks implements gateway.Gateway.
func (b *Books) ListBooks(ctx context.Context, scope gateway.Scope) ([]domain.Book, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	rows, err := b.db.Pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id=$1 ORDER BY date_started DESC`,
		scope.UserID)
	if err != nil {
		return nil, wrapError(gateway.OpList, err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, wrapError(gateway.OpList, err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(gateway.OpList, err)
	}
	return books, nil
}

// CreateBook implements gateway.Gateway.
func (b *Books) CreateBook(ctx context.Context, scope gateway.Scope, draft domain.Draft) (domain.Book, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	row := b.db.Pool.QueryRow(ctx,
		`INSERT INTO books (user_id, title, author, date_started, intention, status) `+
			`VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+bookColumns,
		scope.UserID, draft.Title, draft.Author, draft.DateStarted.String(), draft.Intention, string(domain.StatusReading))

	book, err := scanBook(row)
	if err != nil {
		return domain.Book{}, wrapError(gateway.OpCreate, err)
	}
	b.logger.Debug("book inserted", "book_id", book.ID, "user_id", scope.UserID)
	return book, nil
}

// UpdateBook implements gateway.Gateway.
func (b *Books) UpdateBook(ctx context.Context, scope gateway.Scope, id string, changes domain.Changes) (domain.Book, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	query, args := updateQuery(scope.UserID, id, changes)
	book, err := scanBook(b.db.Pool.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Book{}, wrapError(gateway.OpUpdate, err)
	}
	return book, nil
}

// updateQuery builds an UPDATE with one placeholder per changed column.
// $1 and $2 are always the book id and owner.
func updateQuery(userID, id string, changes domain.Changes) (string, []any) {
	cols := changes.Columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	args = append(args, id, userID)
	for _, col := range cols {
		args = append(args, col.Value)
		sets = append(sets, fmt.Sprintf("%s=$%d", col.Name, len(args)))
	}
	sets = append(sets, "updated_at=now()")

	query := `UPDATE books SET ` + strings.Join(sets, ", ") +
		` WHERE id=$1 AND user_id=$2 RETURNING ` + bookColumns
	return query, args
}

// DeleteBook implements gateway.Gateway. Deleting a missing row is not an error,
// matching the hosted REST endpoint.
func (b *Books) DeleteBook(ctx context.Context, scope gateway.Scope, id string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	tag, err := b.db.Pool.Exec(ctx, `DELETE FROM books WHERE id=$1 AND user_id=$2`, id, scope.UserID)
	if err != nil {
		return wrapError(gateway.OpDelete, err)
	}
	if tag.RowsAffected() == 0 {
		b.logger.Debug("delete matched no rows", "book_id", id, "user_id", scope.UserID)
	}
	return nil
}

func scanBook(row pgx.Row) (domain.Book, error) {
	var (
		book          domain.Book
		status        string
		dateStarted   pgtype.Date
		dateCompleted pgtype.Date
		notes         pgtype.Text
	)
	err := row.Scan(&book.ID, &book.UserID, &book.Title, &book.Author, &status,
		&dateStarted, &dateCompleted, &book.Intention, &notes, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return domain.Book{}, err
	}
	book.Status = domain.Status(status)
	if dateStarted.Valid {
		book.DateStarted = domain.DateOf(dateStarted.Time)
	}
	if dateCompleted.Valid {
		book.DateCompleted = domain.DateOf(dateCompleted.Time)
	}
	book.Notes = notes.String
	return book, nil
}

// wrapError maps pgx failures to gateway errors, keeping the database message.
func wrapError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return gateway.Wrap(op, gateway.ErrNotFound, "")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gateway.Wrap(op, gateway.ErrTimeout, "the request timed out")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "42501" { // insufficient_privilege, raised by row level security
			return gateway.Wrap(op, gateway.ErrUnauthorized, pgErr.Message)
		}
		return gateway.Wrap(op, gateway.ErrBackend, pgErr.Message)
	}
	return gateway.Wrap(op, gateway.ErrBackend, err.Error())
}
