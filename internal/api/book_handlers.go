package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lucidlyapp/lucidly/internal/domain"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/export"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the current list, newest start date first, with a count per filter",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Add book",
		Description:   "Adds a book with status reading. Returns the provisional record unless wait is set",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusAccepted,
		Security:      []map[string][]string{{"session": {}}},
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "updateBook",
		Method:        http.MethodPatch,
		Path:          "/api/v1/books/{id}",
		Summary:       "Update book",
		Description:   "Edits fields of a book. Status changes go through the status endpoint",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusAccepted,
		Security:      []map[string][]string{{"session": {}}},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID:   "changeBookStatus",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/status",
		Summary:       "Change status",
		Description:   "Moves a book between reading and finished or abandoned, setting or clearing date_completed",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusAccepted,
		Security:      []map[string][]string{{"session": {}}},
	}, s.handleChangeStatus)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/books/{id}",
		Summary:       "Delete book",
		Description:   "Deletes a book. If the store refuses, the book comes back",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusAccepted,
		Security:      []map[string][]string{{"session": {}}},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/export",
		Summary:     "Export CSV",
		Description: "Downloads the current list as CSV",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"session": {}}},
	}, s.handleExportBooks)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID            string    `json:"id" doc:"Book ID. Temporary ids start with tmp- until the store confirms"`
	Title         string    `json:"title" doc:"Title"`
	Author        string    `json:"author" doc:"Author"`
	Status        string    `json:"status" doc:"reading, finished, or abandoned"`
	DateStarted   string    `json:"date_started" doc:"Start date, YYYY-MM-DD"`
	DateCompleted *string   `json:"date_completed" doc:"Completion date, YYYY-MM-DD, null while reading"`
	Intention     string    `json:"intention" doc:"Why the book is being read"`
	Notes         string    `json:"notes" doc:"Free-form notes"`
	Provisional   bool      `json:"provisional" doc:"True until the store confirms the record"`
	CreatedAt     time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt     time.Time `json:"updated_at" doc:"Last update time"`
}

func toBookResponse(b domain.Book) BookResponse {
	resp := BookResponse{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Status:      string(b.Status),
		DateStarted: b.DateStarted.String(),
		Intention:   b.Intention,
		Notes:       b.Notes,
		Provisional: b.IsProvisional(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if !b.DateCompleted.IsZero() {
		completed := b.DateCompleted.String()
		resp.DateCompleted = &completed
	}
	return resp
}

func toBookResponses(books []domain.Book) []BookResponse {
	out := make([]BookResponse, len(books))
	for i, b := range books {
		out[i] = toBookResponse(b)
	}
	return out
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	Filter string `query:"filter" enum:"all,reading,finished,abandoned" default:"all" doc:"Show only books with this status"`
}

// ListBooksResponse contains the filtered list.
type ListBooksResponse struct {
	Filter string         `json:"filter" doc:"Active filter"`
	Counts map[string]int `json:"counts" doc:"Number of books per filter"`
	Books  []BookResponse `json:"books" doc:"Books matching the filter"`
}

// ListBooksOutput wraps the list response for Huma.
type ListBooksOutput struct {
	Body ListBooksResponse
}

// CreateBookRequest is the add form.
type CreateBookRequest struct {
	Title       string `json:"title,omitempty" doc:"Title"`
	Author      string `json:"author,omitempty" doc:"Author"`
	DateStarted string `json:"date_started,omitempty" doc:"Start date, YYYY-MM-DD"`
	Intention   string `json:"intention,omitempty" doc:"Why you are reading it"`
}

// CreateBookInput wraps the add request for Huma.
type CreateBookInput struct {
	Wait bool `query:"wait" doc:"Wait for the store to confirm before responding"`
	Body CreateBookRequest
}

// UpdateBookRequest lists the fields to change. Omitted fields are left alone.
type UpdateBookRequest struct {
	Title         *string `json:"title,omitempty" doc:"Title"`
	Author        *string `json:"author,omitempty" doc:"Author"`
	Intention     *string `json:"intention,omitempty" doc:"Intention"`
	Notes         *string `json:"notes,omitempty" doc:"Notes"`
	DateStarted   *string `json:"date_started,omitempty" doc:"Start date, YYYY-MM-DD"`
	DateCompleted *string `json:"date_completed,omitempty" doc:"Completion date, YYYY-MM-DD, or empty to clear"`
}

func (r UpdateBookRequest) fields() []fieldValue {
	var out []fieldValue
	add := func(name string, v *string) {
		if v != nil {
			out = append(out, fieldValue{name: name, value: *v})
		}
	}
	add("title", r.Title)
	add("author", r.Author)
	add("intention", r.Intention)
	add("notes", r.Notes)
	add("date_started", r.DateStarted)
	add("date_completed", r.DateCompleted)
	return out
}

// UpdateBookInput wraps the update request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Wait bool   `query:"wait" doc:"Wait for the store to confirm before responding"`
	Body UpdateBookRequest
}

// ChangeStatusRequest names the target status.
type ChangeStatusRequest struct {
	Status string `json:"status" enum:"reading,finished,abandoned" doc:"New status"`
}

// ChangeStatusInput wraps the status request for Huma.
type ChangeStatusInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Wait bool   `query:"wait" doc:"Wait for the store to confirm before responding"`
	Body ChangeStatusRequest
}

// DeleteBookInput contains parameters for deleting a book.
type DeleteBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Wait bool   `query:"wait" doc:"Wait for the store to confirm before responding"`
}

// MutationResponse describes a mutation that was applied locally.
type MutationResponse struct {
	Ticket  string        `json:"ticket" doc:"Mutation ticket ID"`
	Pending bool          `json:"pending" doc:"True while the store has not answered yet"`
	Book    *BookResponse `json:"book,omitempty" doc:"The book as it is now"`
}

// MutationOutput wraps the mutation response for Huma.
type MutationOutput struct {
	Status int
	Body   MutationResponse
}

// ExportOutput is the CSV attachment.
type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}

	books := t.Books()
	filter := domain.ParseFilter(input.Filter)
	counts := make(map[string]int, len(domain.Filters))
	for f, n := range domain.Counts(books) {
		counts[string(f)] = n
	}

	return &ListBooksOutput{
		Body: ListBooksResponse{
			Filter: string(filter),
			Counts: counts,
			Books:  toBookResponses(filter.Apply(books)),
		},
	}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*MutationOutput, error) {
	draft, err := s.parseDraft(draftInput{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		DateStarted: input.Body.DateStarted,
		Intention:   input.Body.Intention,
	})
	if err != nil {
		return nil, err
	}

	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}
	provisional, ticket, err := t.Add(ctx, draft)
	if err != nil {
		return nil, err
	}

	if !input.Wait {
		book := toBookResponse(provisional)
		return &MutationOutput{
			Status: http.StatusAccepted,
			Body:   MutationResponse{Ticket: ticket.ID, Pending: true, Book: &book},
		}, nil
	}
	if err := ticket.Wait(ctx); err != nil {
		return nil, err
	}
	book := toBookResponse(ticket.Book())
	return &MutationOutput{
		Status: http.StatusCreated,
		Body:   MutationResponse{Ticket: ticket.ID, Book: &book},
	}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*MutationOutput, error) {
	changes, err := fieldChanges(input.Body.fields())
	if err != nil {
		return nil, err
	}

	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}
	if book, ok := t.Book(input.ID); ok {
		if err := book.CheckCompletion(changes); err != nil {
			return nil, domainerrors.ValidationWithDetails("invalid changes", []domainerrors.FieldError{
				{Field: "date_completed", Message: err.Error()},
			})
		}
	}
	ticket, err := t.Update(ctx, input.ID, changes)
	if err != nil {
		return nil, err
	}
	return s.mutationOutput(ctx, t, ticket, input.Wait)
}

func (s *Server) handleChangeStatus(ctx context.Context, input *ChangeStatusInput) (*MutationOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := s.changeStatus(ctx, t, input.ID, input.Body.Status)
	if err != nil {
		return nil, err
	}
	return s.mutationOutput(ctx, t, ticket, input.Wait)
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*MutationOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}
	ticket, err := t.Delete(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if !input.Wait {
		return &MutationOutput{
			Status: http.StatusAccepted,
			Body:   MutationResponse{Ticket: ticket.ID, Pending: true},
		}, nil
	}
	if err := ticket.Wait(ctx); err != nil {
		return nil, err
	}
	return &MutationOutput{Status: http.StatusOK, Body: MutationResponse{Ticket: ticket.ID}}, nil
}

// mutationOutput reports an update, optionally after the store has answered.
func (s *Server) mutationOutput(ctx context.Context, t *tracker.Tracker, ticket *tracker.Ticket, wait bool) (*MutationOutput, error) {
	status := http.StatusAccepted
	pending := true
	if wait {
		if err := ticket.Wait(ctx); err != nil {
			return nil, err
		}
		status = http.StatusOK
		pending = false
	}

	out := &MutationOutput{Status: status, Body: MutationResponse{Ticket: ticket.ID, Pending: pending}}
	if book, ok := t.Book(ticket.BookID); ok {
		resp := toBookResponse(book)
		out.Body.Book = &resp
	}
	return out, nil
}

func (s *Server) handleExportBooks(ctx context.Context, _ *struct{}) (*ExportOutput, error) {
	t, err := s.loadedTracker(ctx)
	if err != nil {
		return nil, err
	}
	return &ExportOutput{
		ContentType:        export.ContentType,
		ContentDisposition: `attachment; filename="` + export.Filename(s.now()) + `"`,
		Body:               export.Bytes(t.Books()),
	}, nil
}
