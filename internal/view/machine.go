// Package view holds the presentation state machines and the view models the
// web handlers render. Nothing here talks to the store.
package view

import "fmt"

// ErrTransition is returned for an event the current state does not accept.
type ErrTransition struct {
	Machine string
	State   string
	Event   string
}

func (e *ErrTransition) Error() string {
	return fmt.Sprintf("%s: %q not allowed while %s", e.Machine, e.Event, e.State)
}

// CardState is whether a book card shows its summary or its full editor.
type CardState string

const (
	CardCollapsed CardState = "collapsed"
	CardExpanded  CardState = "expanded"
)

// Card is the collapse/expand machine of one book card.
type Card struct {
	State CardState
}

// NewCard returns a collapsed card.
func NewCard() *Card { return &Card{State: CardCollapsed} }

// Expand opens the editor.
func (c *Card) Expand() error {
	if c.State != CardCollapsed {
		return &ErrTransition{"card", string(c.State), "expand"}
	}
	c.State = CardExpanded
	return nil
}

// Collapse returns to the summary.
func (c *Card) Collapse() error {
	if c.State != CardExpanded {
		return &ErrTransition{"card", string(c.State), "collapse"}
	}
	c.State = CardCollapsed
	return nil
}

// EditState is whether a field shows its value or an input.
type EditState string

const (
	EditViewing EditState = "viewing"
	EditEditing EditState = "editing"
)

// Keys the field editor reacts to.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// FieldEditor is the edit-in-place machine of one field. A commit reports
// the new value only when it differs from the value editing started with.
type FieldEditor struct {
	Field     string
	Multiline bool
	State     EditState
	Value     string // committed value
	Draft     string
}

// NewFieldEditor returns a viewing editor for field holding value.
func NewFieldEditor(field, value string, multiline bool) *FieldEditor {
	return &FieldEditor{Field: field, Multiline: multiline, State: EditViewing, Value: value, Draft: value}
}

// Click starts editing with a draft equal to the current value.
func (e *FieldEditor) Click() {
	if e.State == EditViewing {
		e.Draft = e.Value
		e.State = EditEditing
	}
}

// Input replaces the draft.
func (e *FieldEditor) Input(draft string) {
	if e.State == EditEditing {
		e.Draft = draft
	}
}

// Blur ends editing. It returns the value to save and true when the draft changed.
func (e *FieldEditor) Blur() (string, bool) {
	if e.State != EditEditing {
		return "", false
	}
	return e.commit()
}

// Key handles a key press. Enter commits single-line fields and is ignored by
// multiline ones. Escape discards the draft.
func (e *FieldEditor) Key(key string) (string, bool) {
	if e.State != EditEditing {
		return "", false
	}
	switch key {
	case KeyEnter:
		if e.Multiline {
			return "", false
		}
		return e.commit()
	case KeyEscape:
		e.Draft = e.Value
		e.State = EditViewing
	}
	return "", false
}

func (e *FieldEditor) commit() (string, bool) {
	e.State = EditViewing
	if e.Draft == e.Value {
		return "", false
	}
	e.Value = e.Draft
	return e.Value, true
}

// DeleteState is the two-step delete confirmation.
type DeleteState string

const (
	DeleteIdle  DeleteState = "idle"
	DeleteArmed DeleteState = "armed"
)

// DeleteConfirm guards delete behind a second click.
type DeleteConfirm struct {
	State DeleteState
}

// NewDeleteConfirm returns an idle confirmation.
func NewDeleteConfirm() *DeleteConfirm { return &DeleteConfirm{State: DeleteIdle} }

// Press handles a click on the delete control. The first press arms; the
// second reports true, meaning the delete should go ahead.
func (d *DeleteConfirm) Press() bool {
	if d.State == DeleteIdle {
		d.State = DeleteArmed
		return false
	}
	d.State = DeleteIdle
	return true
}

// Cancel disarms.
func (d *DeleteConfirm) Cancel() {
	d.State = DeleteIdle
}
