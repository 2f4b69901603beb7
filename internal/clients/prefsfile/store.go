// Package prefsfile keeps user preferences in a small YAML file.
package prefsfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"fido/internal/services/prefs"

	"gopkg.in/yaml.v3"
)

type document struct {
	GridLayout bool `yaml:"grid_layout"`
}

// Store implements prefs.Store on one YAML file. Writes replace the file
// atomically, so a crash never leaves a half-written document.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ prefs.Store = (*Store)(nil)

// New returns a store for path. The file is created on the first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) LoadGridLayout(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return false, err
	}
	return doc.GridLayout, nil
}

func (s *Store) SaveGridLayout(ctx context.Context, grid bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		// an unreadable file is overwritten rather than blocking every save
		doc = document{}
	}
	doc.GridLayout = grid
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	var doc document

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("%w: parse %s: %w", prefs.ErrPrefsUnavailable, s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	return nil
}
