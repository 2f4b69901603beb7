package notelist

import (
	"context"
	"log/slog"
	"sync"

	"fido/internal/services/prefs"
)

// prefsWriter persists the layout flag in the background. Only the newest
// value matters, so toggles made while a write is in flight collapse into one
// follow-up write.
type prefsWriter struct {
	store prefs.Store
	log   *slog.Logger

	mu      sync.Mutex
	pending *bool
	closed  bool
	wake    chan struct{}
}

func newPrefsWriter(store prefs.Store, log *slog.Logger) *prefsWriter {
	return &prefsWriter{
		store: store,
		log:   log,
		wake:  make(chan struct{}, 1),
	}
}

func (w *prefsWriter) save(grid bool) {
	if w.store == nil {
		return
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = &grid
	w.mu.Unlock()
	w.signal()
}

// close makes run return once the pending value, if any, is written.
func (w *prefsWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
}

func (w *prefsWriter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *prefsWriter) run(ctx context.Context) {
	for {
		w.mu.Lock()
		v := w.pending
		w.pending = nil
		closed := w.closed
		w.mu.Unlock()

		switch {
		case v != nil:
			w.write(ctx, *v)
		case closed:
			return
		default:
			<-w.wake
		}
	}
}

// write swallows failures: the flag already changed on screen and a lost
// preference only affects the next start.
func (w *prefsWriter) write(ctx context.Context, grid bool) {
	if err := w.store.SaveGridLayout(ctx, grid); err != nil {
		w.log.Warn("layout preference not saved", "grid_layout", grid, "error", err)
		return
	}
	w.log.Debug("layout preference saved", "grid_layout", grid)
}
