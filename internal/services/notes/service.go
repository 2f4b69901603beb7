package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fido/internal/logger"
	"fido/internal/utils/sanitize"
)

// Service implements the note use-cases on top of a Store.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates a new notes service
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = logger.L()
	}
	return &Service{
		store: store,
		log:   log,
	}
}

// NextID is the id policy for new notes: 0 for an empty list, otherwise
// count+1. It is not an auto-increment and can collide after deletions;
// InsertOrReplace then overwrites the older note.
func NextID(currentCount int) int64 {
	if currentCount == 0 {
		return 0
	}
	return int64(currentCount) + 1
}

// AddNote persists note and returns what was stored. A new note (id -1) gets
// an id from NextID, cleaned text and the placeholder title when its title is
// blank; any other note is stored untouched, which is how a deleted note is
// restored.
func (s *Service) AddNote(ctx context.Context, note Note, currentCount int) (Note, error) {
	n := note
	if n.IsNew() {
		n.ID = NextID(currentCount)
		n = cleanText(n)
		if !ValidateNoteTitle(n.Title) {
			n.Title = PlaceholderTitle
		}
		s.warnOnCollision(ctx, n.ID, currentCount)
	}

	if err := s.store.InsertOrReplace(ctx, n); err != nil {
		s.log.Error(ErrCreateNote.Error(), "error", err, "note_id", n.ID)
		return Note{}, fmt.Errorf("%w: %w", ErrCreateNote, err)
	}

	s.log.Debug("note stored", "note_id", n.ID, "restored", !note.IsNew())
	return n, nil
}

// cleanText strips markup from the user-editable text of n.
func cleanText(n Note) Note {
	n.Title = sanitize.Title(n.Title)
	n.Content = sanitize.Content(n.Content)
	return n
}

// warnOnCollision logs when the id chosen for a new note is already taken.
func (s *Service) warnOnCollision(ctx context.Context, id int64, currentCount int) {
	if _, err := s.store.GetByID(ctx, id); err == nil {
		s.log.Warn("new note id already in use, existing note will be replaced",
			"note_id", id, "current_count", currentCount)
	}
}

// GetNoteByID returns the note with id.
func (s *Service) GetNoteByID(ctx context.Context, id int64) (Note, error) {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found", "note_id", id)
			return Note{}, ErrNoteNotFound
		}
		s.log.Error(ErrGetNote.Error(), "error", err, "note_id", id)
		return Note{}, fmt.Errorf("%w: %w", ErrGetNote, err)
	}
	return n, nil
}

// GetAllNotes starts a live query: every collection the store emits is
// ordered by order and delivered on the returned Query until it is cancelled
// or ctx ends.
func (s *Service) GetAllNotes(ctx context.Context, order OrderBy) (*Query, error) {
	sub, err := s.store.Subscribe(ctx)
	if err != nil {
		s.log.Error(ErrListNotes.Error(), "error", err, "order", order.String())
		return nil, fmt.Errorf("%w: %w", ErrListNotes, err)
	}

	s.log.Debug("live query started", "order", order.String(), "sub_id", sub.ID.String())
	return startQuery(ctx, sub, order), nil
}

// ListNotes returns a one-shot ordered copy of the collection.
func (s *Service) ListNotes(ctx context.Context, order OrderBy) ([]Note, error) {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		s.log.Error(ErrListNotes.Error(), "error", err, "order", order.String())
		return nil, fmt.Errorf("%w: %w", ErrListNotes, err)
	}
	return Sort(all, order), nil
}

// UpdateNote replaces an existing note with a cleaned copy of note and
// returns the stored copy.
func (s *Service) UpdateNote(ctx context.Context, note Note) (Note, error) {
	if note.IsNew() {
		return Note{}, fmt.Errorf("%w: cannot update a note without id", ErrValidation)
	}

	n := cleanText(note)
	if err := s.store.Update(ctx, n); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found for update", "note_id", n.ID)
			return Note{}, ErrNoteNotFound
		}
		s.log.Error(ErrUpdateNote.Error(), "error", err, "note_id", n.ID)
		return Note{}, fmt.Errorf("%w: %w", ErrUpdateNote, err)
	}
	return n, nil
}

// SetChecked updates only the checked flag of the note with id.
func (s *Service) SetChecked(ctx context.Context, id int64, checked bool) error {
	if err := s.store.UpdateChecked(ctx, id, checked); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found for check update", "note_id", id)
			return ErrNoteNotFound
		}
		s.log.Error(ErrUpdateNote.Error(), "error", err, "note_id", id)
		return fmt.Errorf("%w: %w", ErrUpdateNote, err)
	}
	return nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, note Note) error {
	if note.IsNew() {
		return fmt.Errorf("%w: cannot delete a note without id", ErrValidation)
	}

	if err := s.store.Delete(ctx, note); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found for delete", "note_id", note.ID)
			return ErrNoteNotFound
		}
		s.log.Error(ErrDeleteNote.Error(), "error", err, "note_id", note.ID)
		return fmt.Errorf("%w: %w", ErrDeleteNote, err)
	}
	return nil
}

// ValidateNoteTitle is the use-case form of the package-level rule.
func (s *Service) ValidateNoteTitle(title string) bool {
	return ValidateNoteTitle(title)
}
