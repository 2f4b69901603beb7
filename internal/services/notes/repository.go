package notes

import (
	"context"

	"fido/internal/feed"
)

// Store is the durable note collection the use-cases are built on.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetByID returns ErrNoteNotFound when no note has the id.
	GetByID(ctx context.Context, id int64) (Note, error)

	// GetAll returns every note ordered by descending id.
	GetAll(ctx context.Context) ([]Note, error)

	// Subscribe returns a live feed of full collections in descending id
	// order. The current collection is delivered first, then a new one after
	// every change. Cancel the subscription to release it.
	Subscribe(ctx context.Context) (*feed.Subscription[[]Note], error)

	// InsertOrReplace upserts a note keyed by id.
	InsertOrReplace(ctx context.Context, n Note) error

	// Delete removes the note with n.ID; ErrNoteNotFound when absent.
	Delete(ctx context.Context, n Note) error

	// Update replaces the note with n.ID; ErrNoteNotFound when absent.
	Update(ctx context.Context, n Note) error

	// UpdateChecked changes only the checked flag of the note with id.
	UpdateChecked(ctx context.Context, id int64, checked bool) error
}
