package memory

import (
	"context"
	"sync"
)

// PrefsStore keeps the layout preference in memory. Tests use Fail* to
// simulate a broken backing store.
type PrefsStore struct {
	mu       sync.Mutex
	grid     bool
	saves    int
	FailLoad error
	FailSave error
	loadGate chan struct{}
}

// NewPrefsStore creates a preference store holding grid.
func NewPrefsStore(grid bool) *PrefsStore {
	return &PrefsStore{grid: grid}
}

// HoldLoad makes LoadGridLayout block until the returned func is called.
func (p *PrefsStore) HoldLoad() (release func()) {
	gate := make(chan struct{})
	p.mu.Lock()
	p.loadGate = gate
	p.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (p *PrefsStore) LoadGridLayout(ctx context.Context) (bool, error) {
	p.mu.Lock()
	gate := p.loadGate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailLoad != nil {
		return false, p.FailLoad
	}
	return p.grid, nil
}

func (p *PrefsStore) SaveGridLayout(_ context.Context, grid bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailSave != nil {
		return p.FailSave
	}
	p.grid = grid
	p.saves++
	return nil
}

// GridLayout returns the stored value.
func (p *PrefsStore) GridLayout() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grid
}

// Saves returns how many successful writes happened.
func (p *PrefsStore) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
