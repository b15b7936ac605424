package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucidlyapp/lucidly/internal/domain"
	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/export"
	"github.com/lucidlyapp/lucidly/internal/http/response"
	"github.com/lucidlyapp/lucidly/internal/tracker"
	"github.com/lucidlyapp/lucidly/internal/validation"
	"github.com/lucidlyapp/lucidly/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// booksChangedTrigger is the client event that refreshes the book list.
const booksChangedTrigger = "booksChanged"

var copyText = map[string]string{
	"app":          view.TextAppName,
	"tagline":      view.TextTagline,
	"signin":       view.TextSignIn,
	"signout":      view.TextSignOut,
	"loading":      view.TextLoading,
	"loadingBooks": view.TextLoadingBooks,
	"intention":    view.TextIntentionLabel,
}

func parsePages() *template.Template {
	funcs := template.FuncMap{
		"text": func(key string) string { return copyText[key] },
		// Spine colors are generated, never user input.
		"css": func(s string) template.CSS { return template.CSS(s) },
	}
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

type signInPage struct {
	Error string
}

type fullPage struct {
	User      userView
	Banner    *view.Banner
	Pace      view.PaceView
	Reading   view.ReadingView
	Form      view.AddForm
	Dashboard view.Dashboard
	Shelf     view.ShelfView
}

type userView struct {
	Name  string
	Email string
}

func (s *Server) registerWebRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/events", s.sseHandler.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/books", s.handleBooksFragment)
		r.Get("/books/new", s.handleAddForm)
		r.Post("/books/new", s.handleAddBook)
		r.Get("/books/{id}", s.handleCard)
		r.Get("/books/{id}/expand", s.handleExpand)
		r.Get("/books/{id}/collapse", s.handleCollapse)
		r.Get("/books/{id}/fields/{field}", s.handleEditField)
		r.Post("/books/{id}/fields/{field}", s.handleCommitField)
		r.Post("/books/{id}/status", s.handleWebStatus)
		r.Post("/books/{id}/delete", s.handleWebDelete)

		r.Get("/pace", s.handlePaceFragment)
		r.Get("/reading", s.handleReadingFragment)
		r.Get("/shelf", s.handleShelfFragment)
		r.Get("/error", s.handleBannerFragment)
		r.Post("/error/dismiss", s.handleWebDismiss)
		r.Get("/export.csv", s.handleWebExport)
	})
}

// requireSession sends visitors without a session back to the sign-in page.
// HTMX requests get a client-side redirect instead of a swapped page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetSession(r.Context()); err != nil {
			if isHTMX(r) {
				w.Header().Set("HX-Redirect", "/")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// render executes one named template into w. The template runs into a buffer
// first so a failure still produces a clean error response.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("template failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// webError answers a fragment request that failed. The message is plain text;
// store failures are also in the error slot, which the banner shows.
func (s *Server) webError(w http.ResponseWriter, err error) {
	e := response.Classify(err)
	if e.Code == domainerrors.CodeInternal {
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, e.Message, e.HTTPStatus())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := GetSession(r.Context())
	if err != nil {
		s.render(w, http.StatusOK, "signin", signInPage{})
		return
	}

	t := s.registry.For(scopeOf(sess))
	// A failed load is shown by the banner.
	_ = t.Load(r.Context())

	books := t.Books()
	banner := view.NewBanner(t.Error())
	s.render(w, http.StatusOK, "page", fullPage{
		User:      userView{Name: sess.User.Name, Email: sess.User.Email},
		Banner:    banner,
		Pace:      view.NewPace(s.opts.Goal, books, s.now()),
		Reading:   view.NewReading(books),
		Form:      view.NewAddForm(domain.Today(s.now())),
		Dashboard: view.NewDashboard(t.State(), books, domain.ParseFilter(r.URL.Query().Get("filter")), banner),
		Shelf:     view.NewShelf(books),
	})
}

// webTracker is the loaded tracker of the signed-in user.
func (s *Server) webTracker(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, bool) {
	t, err := s.loadedTracker(r.Context())
	if err != nil {
		s.webError(w, err)
		return nil, false
	}
	return t, true
}

// webBook is the book named by the {id} route parameter.
func (s *Server) webBook(w http.ResponseWriter, r *http.Request) (*tracker.Tracker, domain.Book, bool) {
	t, ok := s.webTracker(w, r)
	if !ok {
		return nil, domain.Book{}, false
	}
	id := chi.URLParam(r, "id")
	book, ok := t.Book(id)
	if !ok {
		s.webError(w, domainerrors.NotFoundf("book %s not found", id))
		return nil, domain.Book{}, false
	}
	return t, book, true
}

func (s *Server) handleBooksFragment(w http.ResponseWriter, r *http.Request) {
	t, err := s.currentTracker(r.Context())
	if err != nil {
		s.webError(w, err)
		return
	}
	_ = t.Load(r.Context())
	filter := domain.ParseFilter(r.URL.Query().Get("filter"))
	s.render(w, http.StatusOK, "dashboard", view.NewDashboard(t.State(), t.Books(), filter, view.NewBanner(t.Error())))
}

func (s *Server) handleAddForm(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, "addform", view.NewAddForm(domain.Today(s.now())))
}

// handleAddBook validates the form. An invalid form comes back with its
// messages and its input intact; a valid one is added and the form is reset.
func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.webError(w, domainerrors.Validation("unreadable form"))
		return
	}
	in := draftInput{
		Title:       r.PostFormValue("title"),
		Author:      r.PostFormValue("author"),
		DateStarted: r.PostFormValue("date_started"),
		Intention:   r.PostFormValue("intention"),
	}

	draft, err := s.parseDraft(in)
	if err != nil {
		s.render(w, http.StatusOK, "addform", view.AddForm{
			Title:       in.Title,
			Author:      in.Author,
			DateStarted: in.DateStarted,
			Intention:   in.Intention,
			Errors:      validation.Fields(err),
		})
		return
	}

	t, ok := s.webTracker(w, r)
	if !ok {
		return
	}
	if _, _, err := t.Add(r.Context(), draft); err != nil {
		s.webError(w, err)
		return
	}
	w.Header().Set("HX-Trigger", booksChangedTrigger)
	s.render(w, http.StatusOK, "addform", view.NewAddForm(domain.Today(s.now())))
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	_, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "card", view.NewCardModel(book))
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	_, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	card := view.NewCard()
	if err := card.Expand(); err != nil {
		s.webError(w, domainerrors.Conflict(err.Error()))
		return
	}
	s.renderCard(w, book, card, "", view.DeleteIdle)
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	_, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	card := &view.Card{State: view.CardExpanded}
	if err := card.Collapse(); err != nil {
		s.webError(w, domainerrors.Conflict(err.Error()))
		return
	}
	s.renderCard(w, book, card, "", view.DeleteIdle)
}

// renderCard draws a card in the state its machine is in.
func (s *Server) renderCard(w http.ResponseWriter, book domain.Book, card *view.Card, editing string, del view.DeleteState) {
	if card.State == view.CardExpanded {
		s.render(w, http.StatusOK, "detail", view.NewDetail(book, editing, del))
		return
	}
	s.render(w, http.StatusOK, "card", view.NewCardModel(book))
}

// editorFor rebuilds the field's editor and opens it, as a click would.
func editorFor(book domain.Book, field string) *view.FieldEditor {
	e := view.NewFieldEditor(field, book.FieldValue(field), view.IsMultiline(field))
	e.Click()
	return e
}

func (s *Server) handleEditField(w http.ResponseWriter, r *http.Request) {
	_, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")
	if !view.IsEditable(field) {
		s.webError(w, domainerrors.NotFoundf("field %s not found", field))
		return
	}
	editor := editorFor(book, field)
	s.render(w, http.StatusOK, "field", view.NewFieldModel(book, field, editor.State == view.EditEditing))
}

// handleCommitField ends an edit. The form reports what ended it: focus
// leaving the field, Enter (as a submit), or Escape. Rejected values stay in
// the open editor with their message.
func (s *Server) handleCommitField(w http.ResponseWriter, r *http.Request) {
	t, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")
	if !view.IsEditable(field) {
		s.webError(w, domainerrors.NotFoundf("field %s not found", field))
		return
	}
	if err := r.ParseForm(); err != nil {
		s.webError(w, domainerrors.Validation("unreadable form"))
		return
	}

	editor := editorFor(book, field)
	editor.Input(r.PostFormValue("value"))

	var value string
	var commit bool
	switch r.PostFormValue("event") {
	case "submit":
		value, commit = editor.Key(view.KeyEnter)
	case "keyup":
		value, commit = editor.Key(r.PostFormValue("key"))
	default:
		value, commit = editor.Blur()
	}

	if editor.State == view.EditEditing {
		model := view.NewFieldModel(book, field, true)
		model.Value = editor.Draft
		s.render(w, http.StatusOK, "field", model)
		return
	}
	if !commit {
		s.render(w, http.StatusOK, "field", view.NewFieldModel(book, field, false))
		return
	}

	changes, err := domain.FieldChange(field, value)
	if err == nil {
		err = book.CheckCompletion(changes)
	}
	if err != nil {
		model := view.NewFieldModel(book, field, true)
		model.Value = value
		model.Error = err.Error()
		s.render(w, http.StatusOK, "field", model)
		return
	}
	if _, err := t.Update(r.Context(), book.ID, changes); err != nil {
		s.webError(w, err)
		return
	}

	updated, _ := t.Book(book.ID)
	s.render(w, http.StatusOK, "field", view.NewFieldModel(updated, field, false))
}

func (s *Server) handleWebStatus(w http.ResponseWriter, r *http.Request) {
	t, book, ok := s.webBook(w, r)
	if !ok {
		return
	}
	if _, err := s.changeStatus(r.Context(), t, book.ID, r.FormValue("status")); err != nil {
		s.webError(w, err)
		return
	}
	updated, _ := t.Book(book.ID)
	s.renderCard(w, updated, &view.Card{State: view.CardExpanded}, "", view.DeleteIdle)
}

// handleWebDelete drives the two-step delete button. The confirm state
// travels with the request since nothing about it is kept on the server.
func (s *Server) handleWebDelete(w http.ResponseWriter, r *http.Request) {
	t, book, ok := s.webBook(w, r)
	if !ok {
		return
	}

	confirm := view.NewDeleteConfirm()
	switch r.FormValue("action") {
	case "arm":
		confirm.Press()
	case "cancel":
		confirm.State = view.DeleteArmed
		confirm.Cancel()
	case "confirm":
		confirm.State = view.DeleteArmed
		if confirm.Press() {
			if _, err := t.Delete(r.Context(), book.ID); err != nil {
				s.webError(w, err)
				return
			}
			w.Header().Set("HX-Trigger", booksChangedTrigger)
			w.WriteHeader(http.StatusOK)
			return
		}
	default:
		s.webError(w, domainerrors.Validation("unknown delete action"))
		return
	}
	s.renderCard(w, book, &view.Card{State: view.CardExpanded}, "", confirm.State)
}

func (s *Server) handlePaceFragment(w http.ResponseWriter, r *http.Request) {
	t, ok := s.webTracker(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "pace", view.NewPace(s.opts.Goal, t.Books(), s.now()))
}

func (s *Server) handleReadingFragment(w http.ResponseWriter, r *http.Request) {
	t, ok := s.webTracker(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "reading", view.NewReading(t.Books()))
}

func (s *Server) handleShelfFragment(w http.ResponseWriter, r *http.Request) {
	t, ok := s.webTracker(w, r)
	if !ok {
		return
	}
	s.render(w, http.StatusOK, "shelf", view.NewShelf(t.Books()))
}

func (s *Server) handleBannerFragment(w http.ResponseWriter, r *http.Request) {
	t, err := s.currentTracker(r.Context())
	if err != nil {
		s.webError(w, err)
		return
	}
	s.render(w, http.StatusOK, "banner", view.NewBanner(t.Error()))
}

func (s *Server) handleWebDismiss(w http.ResponseWriter, r *http.Request) {
	t, err := s.currentTracker(r.Context())
	if err != nil {
		s.webError(w, err)
		return
	}
	t.Dismiss()
	s.render(w, http.StatusOK, "banner", (*view.Banner)(nil))
}

func (s *Server) handleWebExport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.webTracker(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.now())+`"`)
	if err := export.Write(w, t.Books()); err != nil {
		s.logger.Warn("export interrupted", "error", err)
	}
}
