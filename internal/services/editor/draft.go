// Package editor holds the state of the add/edit note form.
package editor

import (
	"context"
	"fmt"

	"fido/internal/services/notes"
)

// UseCases is what a Draft needs from notes.Service.
type UseCases interface {
	GetNoteByID(ctx context.Context, id int64) (notes.Note, error)
	AddNote(ctx context.Context, note notes.Note, currentCount int) (notes.Note, error)
	UpdateNote(ctx context.Context, note notes.Note) (notes.Note, error)
	ValidateNoteTitle(title string) bool
}

var _ UseCases = (*notes.Service)(nil)

// Draft is a note being edited. Nothing is stored until Save.
type Draft struct {
	Note notes.Note
	// TitleError is set while the title would be rejected.
	TitleError bool
	// DataHasChanged is set by any edit and cleared by a successful Save.
	DataHasChanged bool

	svc UseCases
}

// New starts a draft for a note that does not exist yet.
func New(svc UseCases) *Draft {
	return &Draft{Note: notes.NewNote(), svc: svc}
}

// Load starts a draft from the stored note with id.
func Load(ctx context.Context, svc UseCases, id int64) (*Draft, error) {
	n, err := svc.GetNoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Draft{Note: n, svc: svc}, nil
}

func (d *Draft) SetTitle(title string) {
	d.Note.Title = title
	d.TitleError = !d.svc.ValidateNoteTitle(title)
	d.DataHasChanged = true
}

func (d *Draft) SetContent(content string) {
	d.Note.Content = content
	d.DataHasChanged = true
}

func (d *Draft) SetColor(color int) {
	d.Note.Color = color
	d.DataHasChanged = true
}

func (d *Draft) TogglePinned() {
	d.Note.IsPinned = !d.Note.IsPinned
	d.DataHasChanged = true
}

func (d *Draft) ToggleChecked() {
	d.Note.IsChecked = !d.Note.IsChecked
	d.DataHasChanged = true
}

// CanSave reports whether Save would write anything.
func (d *Draft) CanSave() bool {
	return d.DataHasChanged && !d.TitleError
}

// Save writes the draft: a new note through AddNote with currentCount, an
// existing one through UpdateNote. On success Note holds the stored copy,
// with its assigned id and cleaned text. An unchanged draft is not written.
func (d *Draft) Save(ctx context.Context, currentCount int) error {
	if d.TitleError || !d.svc.ValidateNoteTitle(d.Note.Title) {
		d.TitleError = true
		return fmt.Errorf("%w: title must not be blank", notes.ErrValidation)
	}
	if !d.DataHasChanged {
		return nil
	}

	var (
		stored notes.Note
		err    error
	)
	if d.Note.IsNew() {
		stored, err = d.svc.AddNote(ctx, d.Note, currentCount)
	} else {
		stored, err = d.svc.UpdateNote(ctx, d.Note)
	}
	if err != nil {
		return err
	}
	d.Note = stored
	d.DataHasChanged = false
	return nil
}
