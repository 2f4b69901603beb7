package notelist

import (
	"errors"
	"fmt"

	"fido/internal/services/notes"
)

// Event names, used for metrics labels and by the HTTP host.
const (
	EventToggleLayout     = "toggle_layout"
	EventSetOrder         = "set_order"
	EventAddNote          = "add_note"
	EventRemoveNote       = "remove_note"
	EventRestoreNote      = "restore_note"
	EventToggleChecked    = "toggle_checked"
	EventTogglePinned     = "toggle_pinned"
	EventToggleOrderPanel = "toggle_order_panel"
	EventToggleSearch     = "toggle_search"
)

var (
	// ErrUnknownEvent is returned for an event type the engine does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrEventNote is returned when an event that targets a note carries none.
	ErrEventNote = errors.New("event requires a persisted note")
)

// Event is one user intent handled by the engine. The set is closed: only
// the types declared in this package implement it.
type Event interface {
	eventName() string
}

// ToggleLayout flips between grid and list layout and persists the choice.
type ToggleLayout struct{}

// SetOrder changes the ordering and restarts the live query.
type SetOrder struct {
	Order notes.OrderBy
}

// AddNote creates a blank note.
type AddNote struct{}

// RemoveNote deletes Note and keeps it for a later RestoreNote.
type RemoveNote struct {
	Note notes.Note
}

// RestoreNote re-inserts the most recently removed note, if any.
type RestoreNote struct{}

// ToggleChecked flips the checked flag of Note.
type ToggleChecked struct {
	Note notes.Note
}

// TogglePinned flips the pinned flag of Note.
type TogglePinned struct {
	Note notes.Note
}

// ToggleOrderPanel shows or hides the ordering controls.
type ToggleOrderPanel struct{}

// ToggleSearch shows or hides the search bar.
type ToggleSearch struct{}

// flush is queued by Engine.Flush.
type flush struct {
	done chan struct{}
}

func (ToggleLayout) eventName() string     { return EventToggleLayout }
func (SetOrder) eventName() string         { return EventSetOrder }
func (AddNote) eventName() string          { return EventAddNote }
func (RemoveNote) eventName() string       { return EventRemoveNote }
func (RestoreNote) eventName() string      { return EventRestoreNote }
func (ToggleChecked) eventName() string    { return EventToggleChecked }
func (TogglePinned) eventName() string     { return EventTogglePinned }
func (ToggleOrderPanel) eventName() string { return EventToggleOrderPanel }
func (ToggleSearch) eventName() string     { return EventToggleSearch }
func (flush) eventName() string            { return "flush" }

// Name returns the wire name of ev.
func Name(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.eventName()
}

// ParseEvent builds an event from its wire form. order is only read for
// set_order and note only for the events that target a note.
func ParseEvent(kind, order string, note *notes.Note) (Event, error) {
	switch kind {
	case EventToggleLayout:
		return ToggleLayout{}, nil
	case EventSetOrder:
		o, err := notes.ParseOrderBy(order)
		if err != nil {
			return nil, err
		}
		return SetOrder{Order: o}, nil
	case EventAddNote:
		return AddNote{}, nil
	case EventRestoreNote:
		return RestoreNote{}, nil
	case EventToggleOrderPanel:
		return ToggleOrderPanel{}, nil
	case EventToggleSearch:
		return ToggleSearch{}, nil
	case EventRemoveNote, EventToggleChecked, EventTogglePinned:
		if note == nil || note.IsNew() {
			return nil, fmt.Errorf("%w: %s", ErrEventNote, kind)
		}
		switch kind {
		case EventRemoveNote:
			return RemoveNote{Note: *note}, nil
		case EventToggleChecked:
			return ToggleChecked{Note: *note}, nil
		default:
			return TogglePinned{Note: *note}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
}
