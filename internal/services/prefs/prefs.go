// Package prefs defines the user-preference store the list engine reads the
// layout flag from.
package prefs

import (
	"context"
	"errors"
)

// ErrPrefsUnavailable wraps any failure of a preference backend.
var ErrPrefsUnavailable = errors.New("preference store unavailable")

// Store persists the grid-vs-list layout preference.
type Store interface {
	// LoadGridLayout returns the stored flag. A backend that has never been
	// written returns false and no error.
	LoadGridLayout(ctx context.Context) (bool, error)
	SaveGridLayout(ctx context.Context, grid bool) error
}
