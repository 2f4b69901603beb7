package notes

import "fido/internal/services/notes"

// CreateNoteRequest is the body of POST /api/v1/notes.
type CreateNoteRequest struct {
	Title     string `json:"title" validate:"required,notetitle,max=200" example:"Groceries"`
	Content   string `json:"content" validate:"max=10000" example:"milk, eggs"`
	Color     int    `json:"color" validate:"gte=0" example:"4294940672"`
	IsPinned  bool   `json:"is_pinned"`
	IsChecked bool   `json:"is_checked"`
}

// UpdateNoteRequest is the body of PUT /api/v1/notes/:id. Every field is
// replaced.
type UpdateNoteRequest struct {
	Title     string `json:"title" validate:"required,notetitle,max=200" example:"Groceries"`
	Content   string `json:"content" validate:"max=10000"`
	Color     int    `json:"color" validate:"gte=0"`
	IsPinned  bool   `json:"is_pinned"`
	IsChecked bool   `json:"is_checked"`
}

// EventRequest is the body of POST /api/v1/events. Events that target a note
// carry either the full note or its id.
type EventRequest struct {
	Type   string      `json:"type" validate:"required,oneof=toggle_layout set_order add_note remove_note restore_note toggle_checked toggle_pinned toggle_order_panel toggle_search"`
	Order  string      `json:"order,omitempty" validate:"required_if=Type set_order" example:"title:asc"`
	Note   *notes.Note `json:"note,omitempty"`
	NoteID *int64      `json:"note_id,omitempty" validate:"omitempty,gte=0" example:"3"`
}

// EventResponse acknowledges an accepted event.
type EventResponse struct {
	Status string `json:"status" example:"accepted"`
	Event  string `json:"event" example:"set_order"`
}
