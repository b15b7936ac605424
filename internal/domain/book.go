// Package domain contains the reading-tracker entities and the pure rules over them.
package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Status is the reading state of a book.
type Status string

// Book statuses.
const (
	StatusReading   Status = "reading"
	StatusFinished  Status = "finished"
	StatusAbandoned Status = "abandoned"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusReading, StatusFinished, StatusAbandoned}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Completed reports whether s carries a completion date.
func (s Status) Completed() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q", s)
	}
	return st, nil
}

// Book is one reading record.
type Book struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Status        Status    `json:"status"`
	DateStarted   Date      `json:"date_started"`
	DateCompleted Date      `json:"date_completed"`
	Intention     string    `json:"intention"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TempIDPrefix marks ids of records not yet confirmed by the store.
const TempIDPrefix = "tmp-"

// IsProvisional reports whether b still carries a temporary id.
func (b Book) IsProvisional() bool {
	return strings.HasPrefix(b.ID, TempIDPrefix)
}

// Draft is the payload of the add form.
type Draft struct {
	Title       string `json:"title" validate:"required" label:"Title"`
	Author      string `json:"author" validate:"required" label:"Author"`
	DateStarted Date   `json:"date_started" validate:"required" label:"Date"`
	Intention   string `json:"intention" validate:"required" label:"Intention"`
}

// Normalize trims surrounding whitespace and applies NFC to the text fields.
func (d Draft) Normalize() Draft {
	d.Title = cleanText(d.Title)
	d.Author = cleanText(d.Author)
	d.Intention = cleanText(d.Intention)
	return d
}

// Provisional builds the local record shown while the store confirms the insert.
func (d Draft) Provisional(id string, now time.Time) Book {
	return Book{
		ID:          id,
		Title:       d.Title,
		Author:      d.Author,
		Status:      StatusReading,
		DateStarted: d.DateStarted,
		Intention:   d.Intention,
		Notes:       "",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Changes is a partial update. Nil fields are left untouched. A non-nil
// DateCompleted pointing at the zero Date clears the completion date.
type Changes struct {
	Title         *string
	Author        *string
	Status        *Status
	DateStarted   *Date
	DateCompleted *Date
	Intention     *string
	Notes         *string
}

// IsEmpty reports whether c changes nothing.
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Author == nil && c.Status == nil && c.DateStarted == nil &&
		c.DateCompleted == nil && c.Intention == nil && c.Notes == nil
}

// Apply returns b with c shallow-merged over it.
func (c Changes) Apply(b Book) Book {
	if c.Title != nil {
		b.Title = *c.Title
	}
	if c.Author != nil {
		b.Author = *c.Author
	}
	if c.Status != nil {
		b.Status = *c.Status
	}
	if c.DateStarted != nil {
		b.DateStarted = *c.DateStarted
	}
	if c.DateCompleted != nil {
		b.DateCompleted = *c.DateCompleted
	}
	if c.Intention != nil {
		b.Intention = *c.Intention
	}
	if c.Notes != nil {
		b.Notes = *c.Notes
	}
	return b
}

// Validate rejects values the store would refuse.
func (c Changes) Validate() error {
	if c.Title != nil && strings.TrimSpace(*c.Title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if c.Author != nil && strings.TrimSpace(*c.Author) == "" {
		return fmt.Errorf("author cannot be empty")
	}
	if c.Status != nil && !c.Status.Valid() {
		return fmt.Errorf("invalid status %q", *c.Status)
	}
	if c.DateStarted != nil && c.DateStarted.IsZero() {
		return fmt.Errorf("date started cannot be empty")
	}
	return nil
}

// CheckCompletion reports whether applying c to b keeps the completion date
// consistent with the status: set for finished or abandoned books, empty
// while reading. Status changes made with StatusChange always pass.
func (b Book) CheckCompletion(c Changes) error {
	if c.DateCompleted == nil {
		return nil
	}
	status := b.Status
	if c.Status != nil {
		status = *c.Status
	}
	switch {
	case status.Completed() && c.DateCompleted.IsZero():
		return fmt.Errorf("date completed cannot be empty for a %s book", status)
	case !status.Completed() && !c.DateCompleted.IsZero():
		return fmt.Errorf("date completed can only be set once a book is finished or abandoned")
	}
	return nil
}

// Column is one column assignment of an update.
type Column struct {
	Name  string
	Value any // nil means SQL NULL
}

// Columns lists the assignments of c in a fixed order, using store column names.
// Dates are rendered as YYYY-MM-DD strings.
func (c Changes) Columns() []Column {
	var cols []Column
	if c.Title != nil {
		cols = append(cols, Column{"title", *c.Title})
	}
	if c.Author != nil {
		cols = append(cols, Column{"author", *c.Author})
	}
	if c.Status != nil {
		cols = append(cols, Column{"status", string(*c.Status)})
	}
	if c.DateStarted != nil {
		cols = append(cols, Column{"date_started", c.DateStarted.String()})
	}
	if c.DateCompleted != nil {
		if c.DateCompleted.IsZero() {
			cols = append(cols, Column{"date_completed", nil})
		} else {
			cols = append(cols, Column{"date_completed", c.DateCompleted.String()})
		}
	}
	if c.Intention != nil {
		cols = append(cols, Column{"intention", *c.Intention})
	}
	if c.Notes != nil {
		cols = append(cols, Column{"notes", *c.Notes})
	}
	return cols
}

// StatusChange builds the update for a status transition. Moving to finished or
// abandoned stamps today as the completion date; moving back to reading clears it.
func StatusChange(status Status, today Date) Changes {
	completed := Date{}
	if status.Completed() {
		completed = today
	}
	return Changes{Status: &status, DateCompleted: &completed}
}

// FieldChange builds the update for a single edited field. Text values are
// normalized; date fields are parsed, with "" clearing date_completed.
func FieldChange(field, value string) (Changes, error) {
	var c Changes
	switch field {
	case "title":
		v := cleanText(value)
		c.Title = &v
	case "author":
		v := cleanText(value)
		c.Author = &v
	case "intention":
		v := cleanText(value)
		c.Intention = &v
	case "notes":
		v := norm.NFC.String(value)
		c.Notes = &v
	case "date_started":
		d, err := ParseDate(strings.TrimSpace(value))
		if err != nil {
			return Changes{}, err
		}
		c.DateStarted = &d
	case "date_completed":
		d, err := ParseDate(strings.TrimSpace(value))
		if err != nil {
			return Changes{}, err
		}
		c.DateCompleted = &d
	default:
		return Changes{}, fmt.Errorf("field %q is not editable", field)
	}
	return c, c.Validate()
}

// FieldValue returns the editable value of a named field.
func (b Book) FieldValue(field string) string {
	switch field {
	case "title":
		return b.Title
	case "author":
		return b.Author
	case "intention":
		return b.Intention
	case "notes":
		return b.Notes
	case "date_started":
		return b.DateStarted.String()
	case "date_completed":
		return b.DateCompleted.String()
	default:
		return ""
	}
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
