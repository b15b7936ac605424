// Package search provides full-text search over a user's books using Bleve.
// The index lives in memory and follows tracker changes.
package search

import "github.com/lucidlyapp/lucidly/internal/domain"

// Document is one book as stored in the index.
type Document struct {
	ID          string `json:"id"` // userID/bookID
	UserID      string `json:"user_id"`
	BookID      string `json:"book_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Intention   string `json:"intention,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status"`
	DateStarted string `json:"date_started"`
}

func docID(userID, bookID string) string {
	return userID + "/" + bookID
}

// FromBook converts a book to a search document.
func FromBook(userID string, b domain.Book) *Document {
	return &Document{
		ID:          docID(userID, b.ID),
		UserID:      userID,
		BookID:      b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Intention:   b.Intention,
		Notes:       b.Notes,
		Status:      string(b.Status),
		DateStarted: b.DateStarted.String(),
	}
}

// ToMap converts the document to a map for Bleve indexing.
// Field names match the mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":           d.ID,
		"user_id":      d.UserID,
		"book_id":      d.BookID,
		"title":        d.Title,
		"author":       d.Author,
		"status":       d.Status,
		"date_started": d.DateStarted,
	}
	if d.Intention != "" {
		m["intention"] = d.Intention
	}
	if d.Notes != "" {
		m["notes"] = d.Notes
	}
	return m
}
