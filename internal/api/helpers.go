package api

import (
	"context"
	"strings"

	"github.com/lucidlyapp/lucidly/internal/domain"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/tracker"
	"github.com/lucidlyapp/lucidly/internal/view"
)

// draftInput is the add form as submitted.
type draftInput struct {
	Title       string
	Author      string
	DateStarted string
	Intention   string
}

// parseDraft normalizes and validates an add form. Failures carry one
// message per field and never touch the tracker.
func (s *Server) parseDraft(in draftInput) (domain.Draft, error) {
	draft := domain.Draft{Title: in.Title, Author: in.Author, Intention: in.Intention}.Normalize()

	date, err := domain.ParseDate(strings.TrimSpace(in.DateStarted))
	if err != nil {
		return draft, domainerrors.ValidationWithDetails("invalid book", []domainerrors.FieldError{
			{Field: "date_started", Message: "Date is invalid."},
		})
	}
	draft.DateStarted = date

	if err := s.validator.Validate(draft); err != nil {
		return draft, err
	}
	return draft, nil
}

// fieldChanges merges single-field edits into one update. Fields are applied
// in the order given; the first invalid value fails the whole update.
func fieldChanges(fields []fieldValue) (domain.Changes, error) {
	var merged domain.Changes
	var problems []domainerrors.FieldError
	for _, f := range fields {
		c, err := domain.FieldChange(f.name, f.value)
		if err != nil {
			problems = append(problems, domainerrors.FieldError{Field: f.name, Message: err.Error()})
			continue
		}
		merged = merge(merged, c)
	}
	if len(problems) > 0 {
		return domain.Changes{}, domainerrors.ValidationWithDetails("invalid changes", problems)
	}
	if merged.IsEmpty() {
		return domain.Changes{}, domainerrors.Validation("no changes")
	}
	return merged, nil
}

type fieldValue struct {
	name  string
	value string
}

func merge(into, from domain.Changes) domain.Changes {
	if from.Title != nil {
		into.Title = from.Title
	}
	if from.Author != nil {
		into.Author = from.Author
	}
	if from.Status != nil {
		into.Status = from.Status
	}
	if from.DateStarted != nil {
		into.DateStarted = from.DateStarted
	}
	if from.DateCompleted != nil {
		into.DateCompleted = from.DateCompleted
	}
	if from.Intention != nil {
		into.Intention = from.Intention
	}
	if from.Notes != nil {
		into.Notes = from.Notes
	}
	return into
}

// changeStatus moves a book to status, stamping or clearing date_completed.
// Only the transitions the editor offers are accepted.
func (s *Server) changeStatus(ctx context.Context, t *tracker.Tracker, bookID, status string) (*tracker.Ticket, error) {
	target, err := domain.ParseStatus(status)
	if err != nil {
		return nil, domainerrors.ValidationWithDetails("invalid status", []domainerrors.FieldError{
			{Field: "status", Message: err.Error()},
		})
	}
	book, ok := t.Book(bookID)
	if !ok {
		return nil, domainerrors.NotFoundf("book %s not found", bookID)
	}
	if !view.AllowedTransition(book.Status, target) {
		return nil, domainerrors.Conflictf("cannot move a %s book to %s", book.Status, target)
	}
	return t.Update(ctx, bookID, domain.StatusChange(target, domain.Today(s.now())))
}
