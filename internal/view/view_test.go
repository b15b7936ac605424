package view

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucidlyapp/lucidly/internal/domain"
	"github.com/lucidlyapp/lucidly/internal/tracker"
)

func book(id string, status domain.Status, started, completed string) domain.Book {
	b := domain.Book{
		ID:          id,
		Title:       "Book " + id,
		Author:      "Author",
		Status:      status,
		DateStarted: domain.MustParseDate(started),
		Intention:   "to learn",
	}
	if completed != "" {
		b.DateCompleted = domain.MustParseDate(completed)
	}
	return b
}

func TestCard(t *testing.T) {
	c := NewCard()
	assert.Equal(t, CardCollapsed, c.State)

	require.NoError(t, c.Expand())
	assert.Equal(t, CardExpanded, c.State)
	assert.Error(t, c.Expand())

	require.NoError(t, c.Collapse())
	assert.Equal(t, CardCollapsed, c.State)

	var terr *ErrTransition
	require.ErrorAs(t, c.Collapse(), &terr)
	assert.Equal(t, "collapse", terr.Event)
}

func TestFieldEditor(t *testing.T) {
	t.Run("commit on blur when changed", func(t *testing.T) {
		e := NewFieldEditor("title", "Dune", false)
		e.Click()
		assert.Equal(t, EditEditing, e.State)
		e.Input("Dune Messiah")

		v, ok := e.Blur()
		assert.True(t, ok)
		assert.Equal(t, "Dune Messiah", v)
		assert.Equal(t, EditViewing, e.State)
	})

	t.Run("no commit when unchanged", func(t *testing.T) {
		e := NewFieldEditor("title", "Dune", false)
		e.Click()
		_, ok := e.Key(KeyEnter)
		assert.False(t, ok)
		assert.Equal(t, EditViewing, e.State)
	})

	t.Run("enter commits single line", func(t *testing.T) {
		e := NewFieldEditor("author", "Herbert", false)
		e.Click()
		e.Input("Frank Herbert")
		v, ok := e.Key(KeyEnter)
		assert.True(t, ok)
		assert.Equal(t, "Frank Herbert", v)
	})

	t.Run("enter ignored for multiline", func(t *testing.T) {
		e := NewFieldEditor("notes", "", true)
		e.Click()
		e.Input("line one")
		_, ok := e.Key(KeyEnter)
		assert.False(t, ok)
		assert.Equal(t, EditEditing, e.State)

		v, ok := e.Blur()
		assert.True(t, ok)
		assert.Equal(t, "line one", v)
	})

	t.Run("escape discards", func(t *testing.T) {
		e := NewFieldEditor("title", "Dune", false)
		e.Click()
		e.Input("Other")
		_, ok := e.Key(KeyEscape)
		assert.False(t, ok)
		assert.Equal(t, EditViewing, e.State)
		assert.Equal(t, "Dune", e.Draft)

		_, ok = e.Blur()
		assert.False(t, ok, "blur after cancel does nothing")
	})

	t.Run("input ignored while viewing", func(t *testing.T) {
		e := NewFieldEditor("title", "Dune", false)
		e.Input("x")
		assert.Equal(t, "Dune", e.Draft)
	})
}

func TestDeleteConfirm(t *testing.T) {
	d := NewDeleteConfirm()
	assert.False(t, d.Press())
	assert.Equal(t, DeleteArmed, d.State)

	d.Cancel()
	assert.Equal(t, DeleteIdle, d.State)

	assert.False(t, d.Press())
	assert.True(t, d.Press())
	assert.Equal(t, DeleteIdle, d.State)
}

func TestDashboard(t *testing.T) {
	books := []domain.Book{
		book("a", domain.StatusReading, "2026-01-02", ""),
		book("b", domain.StatusFinished, "2026-01-01", "2026-01-20"),
	}

	d := NewDashboard(tracker.StateReady, books, domain.FilterAll, nil)
	assert.False(t, d.Loading)
	require.Len(t, d.Tabs, 4)
	assert.Equal(t, "All (2)", d.Tabs[0].Caption())
	assert.True(t, d.Tabs[0].Active)
	assert.Equal(t, "Abandoned (0)", d.Tabs[3].Caption())
	assert.Len(t, d.Cards, 2)
	assert.Empty(t, d.Empty)

	d = NewDashboard(tracker.StateReady, books, domain.Filter(domain.StatusAbandoned), nil)
	assert.Empty(t, d.Cards)
	assert.Equal(t, "No abandoned books.", d.Empty)

	d = NewDashboard(tracker.StateReady, nil, domain.FilterAll, nil)
	assert.Equal(t, TextNoBooks, d.Empty)

	d = NewDashboard(tracker.StateLoading, books, domain.FilterAll, nil)
	assert.True(t, d.Loading)
	assert.Empty(t, d.Cards)

	banner := NewBanner(tracker.Failure{Message: "boom"}, true)
	d = NewDashboard(tracker.StateFailed, nil, domain.FilterAll, banner)
	assert.False(t, d.Loading)
	assert.Empty(t, d.Tabs, "no partial list after a failed load")
	assert.Equal(t, "Something went wrong: boom", d.Error.Text())
	assert.Nil(t, NewBanner(tracker.Failure{}, false))
}

func TestCardModel_TruncatesIntention(t *testing.T) {
	b := book("a", domain.StatusReading, "2026-01-02", "")
	b.Intention = strings.Repeat("x", 150)

	c := NewCardModel(b)
	assert.Equal(t, strings.Repeat("x", 100)+"…", c.IntentionPreview)
	assert.Equal(t, "2026-01-02", c.Started)
}

func TestDetail(t *testing.T) {
	reading := book("a", domain.StatusReading, "2026-01-02", "")
	d := NewDetail(reading, "notes", DeleteIdle)

	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"title", "author", "intention", "date_started", "notes"}, names)
	assert.True(t, d.Fields[4].Editing)
	assert.True(t, d.Fields[4].Multiline)
	assert.Equal(t, TextClickToEdit, d.Fields[4].Placeholder())
	assert.Equal(t, "date", d.Fields[3].InputType)
	assert.Equal(t, []StatusAction{
		{Label: "Mark as Finished", Target: "finished"},
		{Label: "Abandon", Target: "abandoned"},
	}, d.Actions)
	assert.False(t, d.DeleteArmed)

	finished := book("b", domain.StatusFinished, "2026-01-02", "2026-02-01")
	d = NewDetail(finished, "", DeleteArmed)
	assert.Len(t, d.Fields, 6)
	assert.Equal(t, []StatusAction{{Label: "Resume Reading", Target: "reading"}}, d.Actions)
	assert.Equal(t, "Delete Book b? This can't be undone.", d.DeletePrompt)
}

func TestIsEditable(t *testing.T) {
	assert.True(t, IsEditable("intention"))
	assert.True(t, IsEditable("date_completed"))
	assert.False(t, IsEditable("status"))
	assert.False(t, IsEditable("user_id"))
}

func TestAllowedTransition(t *testing.T) {
	assert.True(t, AllowedTransition(domain.StatusReading, domain.StatusFinished))
	assert.True(t, AllowedTransition(domain.StatusReading, domain.StatusAbandoned))
	assert.True(t, AllowedTransition(domain.StatusAbandoned, domain.StatusReading))
	assert.False(t, AllowedTransition(domain.StatusFinished, domain.StatusAbandoned))
	assert.False(t, AllowedTransition(domain.StatusReading, domain.StatusReading))
}

func TestShelf(t *testing.T) {
	s := NewShelf([]domain.Book{
		book("late", domain.StatusFinished, "2026-01-01", "2026-03-01"),
		book("early", domain.StatusFinished, "2026-01-01", "2026-02-01"),
		book("reading", domain.StatusReading, "2026-01-01", ""),
	})
	require.Len(t, s.Spines, 2)
	assert.Equal(t, "early", s.Spines[0].ID)
	assert.True(t, strings.HasPrefix(s.Spines[0].Color, "hsl("))

	assert.Equal(t, TextShelfEmpty, NewShelf(nil).Empty)
}

func TestReading(t *testing.T) {
	r := NewReading([]domain.Book{
		book("old", domain.StatusReading, "2026-01-05", ""),
		book("new", domain.StatusReading, "2026-02-14", ""),
	})
	require.Len(t, r.Books, 2)
	assert.Equal(t, "new", r.Books[0].ID)
	assert.Equal(t, "Feb 14", r.Books[0].Started)
	assert.Equal(t, "Jan 5", r.Books[1].Started)

	assert.Equal(t, TextReadingEmpty, NewReading(nil).Empty)
}

func TestPace(t *testing.T) {
	books := make([]domain.Book, 3)
	for i := range books {
		books[i].Status = domain.StatusFinished
	}
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC).AddDate(0, 0, 60)

	p := NewPace(domain.Goal{Books: 30, Year: 2026}, books, now)
	assert.Equal(t, 3, p.Finished)
	assert.Equal(t, 10, p.Percent)
	assert.Equal(t, "of 30 books", p.Caption())
	assert.Equal(t, "You're 2 books behind. That's okay — you have 305 days left.", p.Message)
}

func TestTexts(t *testing.T) {
	assert.Equal(t, "No books yet. Add one to get started.", EmptyFilterText("all"))
	assert.Equal(t, "No reading books.", EmptyFilterText("reading"))
	assert.Equal(t, "2026-03-04", NewAddForm(domain.MustParseDate("2026-03-04")).DateStarted)
}
