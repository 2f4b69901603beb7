package notes

import "errors"

// ErrNoteNotFound is returned when an operation references a non-existent id.
var ErrNoteNotFound = errors.New("note not found")

// ErrValidation is returned when a note fails a business rule.
var ErrValidation = errors.New("note validation failed")

// ErrStoreUnavailable wraps any failure of the durable store other than a missing note.
var ErrStoreUnavailable = errors.New("note store unavailable")

// ErrCreateNote is returned when note creation fails.
var ErrCreateNote = errors.New("failed to create note")

// ErrUpdateNote is returned when note update fails.
var ErrUpdateNote = errors.New("failed to update note")

// ErrDeleteNote is returned when note deletion fails.
var ErrDeleteNote = errors.New("failed to delete note")

// ErrGetNote is returned when a note lookup fails.
var ErrGetNote = errors.New("failed to get note")

// ErrListNotes is returned when notes listing fails.
var ErrListNotes = errors.New("failed to list notes")

// ErrInvalidOrder is returned when an order string cannot be parsed.
var ErrInvalidOrder = errors.New("invalid order")
