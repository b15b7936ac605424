package view

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lucidlyapp/lucidly/internal/color"
	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

// FilterTab is one button of the filter bar.
type FilterTab struct {
	Key    string
	Label  string
	Count  int
	Active bool
}

// Caption is the button text, e.g. "Reading (3)".
func (t FilterTab) Caption() string {
	return fmt.Sprintf("%s (%d)", t.Label, t.Count)
}

// FilterBar builds the tabs for books with active selected.
func FilterBar(books []domain.Book, active domain.Filter) []FilterTab {
	counts := domain.Counts(books)
	tabs := make([]FilterTab, 0, len(domain.Filters))
	for _, f := range domain.Filters {
		tabs = append(tabs, FilterTab{
			Key:    string(f),
			Label:  capitalize(string(f)),
			Count:  counts[f],
			Active: f == active,
		})
	}
	return tabs
}

// CardModel is the collapsed summary of a book.
type CardModel struct {
	ID               string
	Title            string
	Author           string
	Status           string
	IntentionPreview string
	Started          string
	Provisional      bool
}

// NewCardModel summarizes b.
func NewCardModel(b domain.Book) CardModel {
	return CardModel{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		Status:           string(b.Status),
		IntentionPreview: domain.Truncate(b.Intention, domain.IntentionPreviewLength),
		Started:          b.DateStarted.String(),
		Provisional:      b.IsProvisional(),
	}
}

// Banner is the dismissible error message.
type Banner struct {
	Message string
}

// Text is the full banner line.
func (b Banner) Text() string {
	return TextErrorPrefix + b.Message
}

// NewBanner returns the banner for the tracker's error slot, if any.
func NewBanner(f tracker.Failure, ok bool) *Banner {
	if !ok {
		return nil
	}
	return &Banner{Message: f.Message}
}

// Dashboard is the main page: filter bar, the filtered list and its empty text.
type Dashboard struct {
	Loading bool
	Filter  string
	Tabs    []FilterTab
	Cards   []CardModel
	Empty   string
	Error   *Banner
}

// NewDashboard renders the list state of a tracker.
func NewDashboard(state tracker.LoadState, books []domain.Book, filter domain.Filter, banner *Banner) Dashboard {
	d := Dashboard{
		Loading: state == tracker.StateLoading || state == tracker.StateIdle,
		Filter:  string(filter),
		Error:   banner,
	}
	if d.Loading || state == tracker.StateFailed {
		return d
	}

	d.Tabs = FilterBar(books, filter)
	for _, b := range filter.Apply(books) {
		d.Cards = append(d.Cards, NewCardModel(b))
	}
	if len(d.Cards) == 0 {
		d.Empty = EmptyFilterText(string(filter))
	}
	return d
}

// Field names in the order the editor shows them.
var editorFields = []string{"title", "author", "intention", "date_started", "date_completed", "notes"}

// FieldModel is one edit-in-place field.
type FieldModel struct {
	BookID    string
	Name      string
	Label     string
	Value     string
	InputType string // text or date
	Multiline bool
	Editing   bool
	Error     string // rejected input message, shown while editing
}

// Placeholder is shown in place of an empty value.
func (f FieldModel) Placeholder() string {
	if f.Value == "" {
		return TextClickToEdit
	}
	return ""
}

// IsEditable reports whether field can be edited in place.
func IsEditable(field string) bool {
	_, ok := fieldLabels[field]
	return ok
}

// IsMultiline reports whether field is edited in a textarea.
func IsMultiline(field string) bool {
	return field == "intention" || field == "notes"
}

// NewFieldModel describes field of b. editing selects the input form.
func NewFieldModel(b domain.Book, field string, editing bool) FieldModel {
	inputType := "text"
	if strings.HasPrefix(field, "date_") {
		inputType = "date"
	}
	return FieldModel{
		BookID:    b.ID,
		Name:      field,
		Label:     fieldLabels[field],
		Value:     b.FieldValue(field),
		InputType: inputType,
		Multiline: IsMultiline(field),
		Editing:   editing,
	}
}

var fieldLabels = map[string]string{
	"title":          "Title",
	"author":         "Author",
	"intention":      TextIntentionLabel,
	"date_started":   "Date started",
	"date_completed": "Date completed",
	"notes":          "Notes",
}

// StatusAction is a status button of the editor.
type StatusAction struct {
	Label  string
	Target string
}

// StatusActions lists the transitions offered from status.
func StatusActions(status domain.Status) []StatusAction {
	switch status {
	case domain.StatusReading:
		return []StatusAction{
			{Label: "Mark as Finished", Target: string(domain.StatusFinished)},
			{Label: "Abandon", Target: string(domain.StatusAbandoned)},
		}
	case domain.StatusFinished, domain.StatusAbandoned:
		return []StatusAction{{Label: "Resume Reading", Target: string(domain.StatusReading)}}
	default:
		return nil
	}
}

// AllowedTransition reports whether the editor offers moving from one status to another.
func AllowedTransition(from, to domain.Status) bool {
	for _, a := range StatusActions(from) {
		if a.Target == string(to) {
			return true
		}
	}
	return false
}

// Detail is the expanded editor of a book.
type Detail struct {
	Card         CardModel
	Fields       []FieldModel
	Actions      []StatusAction
	DeleteArmed  bool
	DeletePrompt string
}

// NewDetail builds the editor. editing names the field currently being
// edited, or is empty.
func NewDetail(b domain.Book, editing string, del DeleteState) Detail {
	d := Detail{
		Card:        NewCardModel(b),
		Actions:     StatusActions(b.Status),
		DeleteArmed: del == DeleteArmed,
	}
	if d.DeleteArmed {
		d.DeletePrompt = DeletePrompt(b.Title)
	}
	for _, f := range editorFields {
		if f == "date_completed" && !b.Status.Completed() {
			continue
		}
		d.Fields = append(d.Fields, NewFieldModel(b, f, f == editing))
	}
	return d
}

// Spine is one book on the shelf.
type Spine struct {
	ID     string
	Title  string
	Author string
	Color  string
}

// ShelfView is the gallery of finished books.
type ShelfView struct {
	Spines []Spine
	Empty  string
}

// NewShelf renders the finished books by completion date.
func NewShelf(books []domain.Book) ShelfView {
	var s ShelfView
	for _, b := range domain.Shelf(books) {
		s.Spines = append(s.Spines, Spine{
			ID:     b.ID,
			Title:  b.Title,
			Author: b.Author,
			Color:  color.ForTitle(b.Title).CSS(),
		})
	}
	if len(s.Spines) == 0 {
		s.Empty = TextShelfEmpty
	}
	return s
}

// ActiveBook is a currently-reading card.
type ActiveBook struct {
	ID        string
	Title     string
	Author    string
	Intention string
	Started   string // e.g. "Jan 5"
}

// ReadingView lists books in progress.
type ReadingView struct {
	Books []ActiveBook
	Empty string
}

// NewReading renders the books being read, newest start first.
func NewReading(books []domain.Book) ReadingView {
	var r ReadingView
	for _, b := range domain.CurrentlyReading(books) {
		r.Books = append(r.Books, ActiveBook{
			ID:        b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Intention: b.Intention,
			Started:   b.DateStarted.Format("Jan 2"),
		})
	}
	if len(r.Books) == 0 {
		r.Empty = TextReadingEmpty
	}
	return r
}

// PaceView is the goal progress panel.
type PaceView struct {
	Finished int
	Goal     int
	Percent  int // progress bar width, 0-100
	Message  string
}

// Caption is the "of N books" line.
func (p PaceView) Caption() string {
	return fmt.Sprintf("of %d books", p.Goal)
}

// NewPace computes the pace panel at now.
func NewPace(goal domain.Goal, books []domain.Book, now time.Time) PaceView {
	p := domain.ComputePace(goal, books, now)
	return PaceView{
		Finished: p.Finished,
		Goal:     goal.Books,
		Percent:  int(math.Round(p.Progress * 100)),
		Message:  p.Message,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AddForm is the add-a-book form with its per-field messages.
type AddForm struct {
	Title       string
	Author      string
	DateStarted string
	Intention   string
	Errors      map[string]string // keyed by json field name
}

// NewAddForm returns an empty form whose date defaults to today.
func NewAddForm(today domain.Date) AddForm {
	return AddForm{DateStarted: today.String()}
}

// Error returns the message for field, if any.
func (f AddForm) Error(field string) string {
	return f.Errors[field]
}
