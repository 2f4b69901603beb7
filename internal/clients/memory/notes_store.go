// Package memory holds in-process implementations of the note and
// preference stores. They back the server when STORE_DRIVER=memory and the
// engine tests.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"fido/internal/feed"
	"fido/internal/services/notes"
)

// NotesStore is a map-backed notes.Store that publishes the full collection
// after every successful mutation.
type NotesStore struct {
	mu    sync.RWMutex
	notes map[int64]notes.Note
	hub   *feed.Hub[[]notes.Note]
}

var _ notes.Store = (*NotesStore)(nil)

// NewNotesStore creates a store pre-filled with seed.
func NewNotesStore(seed ...notes.Note) *NotesStore {
	s := &NotesStore{
		notes: make(map[int64]notes.Note, len(seed)),
		hub:   feed.NewHub[[]notes.Note]("memory-notes", 1),
	}
	for _, n := range seed {
		s.notes[n.ID] = n
	}
	s.hub.Publish(s.snapshotLocked())
	return s
}

// snapshotLocked returns all notes ordered by descending id.
// Callers must hold s.mu.
func (s *NotesStore) snapshotLocked() []notes.Note {
	all := slices.Collect(maps.Values(s.notes))
	slices.SortFunc(all, func(a, b notes.Note) int { return cmp.Compare(b.ID, a.ID) })
	if all == nil {
		all = []notes.Note{}
	}
	return all
}

// publishLocked must run with the write lock held so that publications
// happen in mutation order.
func (s *NotesStore) publishLocked() {
	s.hub.Publish(s.snapshotLocked())
}

func (s *NotesStore) GetByID(ctx context.Context, id int64) (notes.Note, error) {
	if err := ctx.Err(); err != nil {
		return notes.Note{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return notes.Note{}, notes.ErrNoteNotFound
	}
	return n, nil
}

func (s *NotesStore) GetAll(ctx context.Context) ([]notes.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *NotesStore) Subscribe(ctx context.Context) (*feed.Subscription[[]notes.Note], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(), nil
}

func (s *NotesStore) InsertOrReplace(ctx context.Context, n notes.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes[n.ID] = n
	s.publishLocked()
	return nil
}

func (s *NotesStore) Delete(ctx context.Context, n notes.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[n.ID]; !ok {
		return notes.ErrNoteNotFound
	}
	delete(s.notes, n.ID)
	s.publishLocked()
	return nil
}

func (s *NotesStore) Update(ctx context.Context, n notes.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[n.ID]; !ok {
		return notes.ErrNoteNotFound
	}
	s.notes[n.ID] = n
	s.publishLocked()
	return nil
}

func (s *NotesStore) UpdateChecked(ctx context.Context, id int64, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notes[id]
	if !ok {
		return notes.ErrNoteNotFound
	}
	n.IsChecked = checked
	s.notes[id] = n
	s.publishLocked()
	return nil
}

// Ping always succeeds; it lets the health check treat stores uniformly.
func (s *NotesStore) Ping(context.Context) error { return nil }

// Close ends every live subscription.
func (s *NotesStore) Close() {
	s.hub.Close()
}
