// Package notelist keeps a live, ordered view of the stored notes in step
// with what the user asked for: sort order, layout, visible panels and the
// last deleted note.
//
// All state belongs to one goroutine. Events, query emissions and
// background results are delivered to it over channels and applied one at a
// time. Store writes run on a separate FIFO worker so a slow store never
// delays event handling, and the layout preference is written by its own
// goroutine.
package notelist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"fido/internal/feed"
	"fido/internal/logger"
	"fido/internal/services/notes"
	"fido/internal/services/prefs"
)

var (
	// ErrEngineStopped is returned by Dispatch and Start once Stop was called.
	ErrEngineStopped = errors.New("notelist engine stopped")
	// ErrEngineRunning is returned by a second Start.
	ErrEngineRunning = errors.New("notelist engine already started")
)

// UseCases is the subset of notes.Service the engine drives.
type UseCases interface {
	AddNote(ctx context.Context, note notes.Note, currentCount int) (notes.Note, error)
	GetAllNotes(ctx context.Context, order notes.OrderBy) (*notes.Query, error)
	UpdateNote(ctx context.Context, note notes.Note) (notes.Note, error)
	DeleteNote(ctx context.Context, note notes.Note) error
}

var _ UseCases = (*notes.Service)(nil)

// Options tune an Engine.
type Options struct {
	// DefaultGridLayout is shown until the stored preference has been read.
	DefaultGridLayout bool
	// SnapshotBuffer is the channel size of every snapshot subscription.
	SnapshotBuffer int
	// EventBuffer is how many dispatched events may wait for the loop.
	EventBuffer int
	// Metrics receives engine counters. Unregistered collectors are used
	// when nil.
	Metrics *Metrics
}

// Option modifies Options.
type Option func(*Options)

// WithDefaultGridLayout sets Options.DefaultGridLayout.
func WithDefaultGridLayout(grid bool) Option {
	return func(o *Options) { o.DefaultGridLayout = grid }
}

// WithSnapshotBuffer sets Options.SnapshotBuffer.
func WithSnapshotBuffer(n int) Option {
	return func(o *Options) { o.SnapshotBuffer = n }
}

// WithEventBuffer sets Options.EventBuffer.
func WithEventBuffer(n int) Option {
	return func(o *Options) { o.EventBuffer = n }
}

// WithMetrics sets Options.Metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// Engine is the list state engine. Create it with New, then Start it.
type Engine struct {
	svc     UseCases
	prefs   prefs.Store
	log     *slog.Logger
	metrics *Metrics

	events        chan Event
	layoutLoaded  chan bool
	restoreFailed chan notes.Note

	hub       *feed.Hub[Snapshot]
	mutations *mutationQueue
	prefsOut  *prefsWriter

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
	workers  sync.WaitGroup

	// owned by the loop goroutine
	state     Snapshot
	undo      *notes.Note
	layoutSet bool
	query     *notes.Query
}

// New creates an engine over svc. store may be nil, in which case the layout
// flag is neither loaded nor saved.
func New(svc UseCases, store prefs.Store, log *slog.Logger, opts ...Option) *Engine {
	o := Options{SnapshotBuffer: 1, EventBuffer: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if o.EventBuffer < 1 {
		o.EventBuffer = 1
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(nil)
	}
	if log == nil {
		log = logger.L()
	}
	log = log.With("component", "notelist")

	e := &Engine{
		svc:           svc,
		prefs:         store,
		log:           log,
		metrics:       o.Metrics,
		events:        make(chan Event, o.EventBuffer),
		layoutLoaded:  make(chan bool),
		restoreFailed: make(chan notes.Note),
		hub:           feed.NewHub[Snapshot]("notelist", o.SnapshotBuffer),
		mutations:     newMutationQueue(log, o.Metrics),
		prefsOut:      newPrefsWriter(store, log),
		stopped:       make(chan struct{}),
		loopDone:      make(chan struct{}),
		state:         initialSnapshot(o.DefaultGridLayout),
	}
	e.publish()
	return e
}

// Start issues the first live query and launches the engine goroutines. The
// engine runs until Stop is called or ctx ends.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.stopped:
		return ErrEngineStopped
	default:
	}
	if e.started {
		return ErrEngineRunning
	}

	order := e.state.Order
	loopCtx, cancel := context.WithCancel(ctx)
	q, err := e.svc.GetAllNotes(loopCtx, order)
	if err != nil {
		cancel()
		return fmt.Errorf("start live query: %w", err)
	}
	e.query = q
	e.cancel = cancel
	e.started = true

	// Writes already queued when the engine stops are still carried out.
	workCtx := context.WithoutCancel(ctx)
	e.workers.Add(2)
	go func() {
		defer e.workers.Done()
		e.mutations.run(workCtx)
	}()
	go func() {
		defer e.workers.Done()
		e.prefsOut.run(workCtx)
	}()

	if e.prefs != nil {
		go e.loadLayout(loopCtx)
	}
	go e.run(loopCtx)

	e.log.Info("notelist engine started", "order", order.String())
	return nil
}

// Stop cancels the live query, waits for queued store writes and the
// pending preference write, and closes every snapshot subscription.
// Safe to call more than once, and before Start.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopped)

		e.mu.Lock()
		started, cancel := e.started, e.cancel
		e.mu.Unlock()

		if started {
			cancel()
			<-e.loopDone
			e.mutations.close()
			e.prefsOut.close()
			e.workers.Wait()
		}
		e.hub.Close()
		e.log.Info("notelist engine stopped")
	})
}

// Dispatch hands ev to the engine. It returns once the event is queued, not
// when it has been handled.
func (e *Engine) Dispatch(ctx context.Context, ev Event) error {
	if ev == nil {
		return ErrUnknownEvent
	}
	select {
	case <-e.stopped:
		return ErrEngineStopped
	default:
	}

	select {
	case e.events <- ev:
		return nil
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every event dispatched before the call has been handled
// and the store writes it caused have completed. Snapshots reflecting those
// writes may still be on their way.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := e.Dispatch(ctx, flush{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.loopDone:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the most recently published state.
func (e *Engine) Snapshot() Snapshot {
	s, _ := e.hub.Latest()
	return s
}

// Subscribe returns a subscription that receives the current snapshot and
// then every new one. Slow readers only ever miss intermediate snapshots.
func (e *Engine) Subscribe() *feed.Subscription[Snapshot] {
	return e.hub.Subscribe()
}

// Subscribers reports the number of live snapshot subscriptions.
func (e *Engine) Subscribers() int {
	n, _ := e.hub.Stats()
	return n
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.loopDone)
	defer func() {
		if e.query != nil {
			e.query.Cancel()
			e.query = nil
		}
		if n := len(e.events); n > 0 {
			e.log.Debug("dropping unhandled events", "count", n)
		}
	}()

	for {
		// A nil channel never becomes ready, so only the current query is read.
		var emissions <-chan []notes.Note
		if e.query != nil {
			emissions = e.query.C
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.handle(ctx, ev)
		case list, ok := <-emissions:
			if !ok {
				e.log.Warn("live query ended", "order", e.query.Order.String())
				e.query = nil
				continue
			}
			e.state.Notes = list
			e.publish()
		case grid := <-e.layoutLoaded:
			if e.layoutSet {
				e.log.Debug("stored layout ignored, already toggled", "grid_layout", grid)
				continue
			}
			e.layoutSet = true
			if grid != e.state.GridLayout {
				e.state.GridLayout = grid
				e.publish()
			}
		case n := <-e.restoreFailed:
			if e.undo == nil {
				e.undo = &n
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	if _, ok := ev.(flush); !ok {
		e.metrics.events.WithLabelValues(ev.eventName()).Inc()
	}

	switch ev := ev.(type) {
	case ToggleLayout:
		e.layoutSet = true
		e.state.GridLayout = !e.state.GridLayout
		e.publish()
		e.prefsOut.save(e.state.GridLayout)

	case SetOrder:
		e.setOrder(ctx, ev.Order)

	case AddNote:
		count := len(e.state.Notes)
		e.mutate(mutation{
			op:     EventAddNote,
			noteID: notes.NoID,
			fn: func(ctx context.Context) error {
				_, err := e.svc.AddNote(ctx, notes.NewNote(), count)
				return err
			},
		})

	case RemoveNote:
		n := ev.Note
		e.undo = &n
		e.mutate(mutation{
			op:     EventRemoveNote,
			noteID: n.ID,
			fn: func(ctx context.Context) error {
				return e.svc.DeleteNote(ctx, n)
			},
		})

	case RestoreNote:
		if e.undo == nil {
			e.log.Debug("nothing to restore")
			return
		}
		n := *e.undo
		e.undo = nil
		count := len(e.state.Notes)
		e.mutate(mutation{
			op:     EventRestoreNote,
			noteID: n.ID,
			fn: func(ctx context.Context) error {
				_, err := e.svc.AddNote(ctx, n, count)
				return err
			},
			onFail: func(error) { e.rearmUndo(n) },
		})

	case ToggleChecked:
		n := ev.Note
		n.IsChecked = !n.IsChecked
		e.mutate(e.updateMutation(EventToggleChecked, n))

	case TogglePinned:
		n := ev.Note
		n.IsPinned = !n.IsPinned
		e.mutate(e.updateMutation(EventTogglePinned, n))

	case ToggleOrderPanel:
		e.state.OrderPanelVisible = !e.state.OrderPanelVisible
		e.publish()

	case ToggleSearch:
		e.state.SearchVisible = !e.state.SearchVisible
		e.publish()

	case flush:
		done := ev.done
		e.mutate(mutation{
			op: "flush",
			fn: func(context.Context) error {
				close(done)
				return nil
			},
		})
	}
}

func (e *Engine) updateMutation(op string, n notes.Note) mutation {
	return mutation{
		op:     op,
		noteID: n.ID,
		fn: func(ctx context.Context) error {
			_, err := e.svc.UpdateNote(ctx, n)
			return err
		},
	}
}

func (e *Engine) mutate(m mutation) {
	if !e.mutations.push(m) {
		e.log.Warn("mutation dropped, engine stopping", "op", m.op, "note_id", m.noteID)
	}
}

// setOrder cancels the current query before the replacement is issued, so
// nothing ordered the old way can reach the snapshot afterwards.
func (e *Engine) setOrder(ctx context.Context, order notes.OrderBy) {
	if e.query != nil {
		e.query.Cancel()
		e.query = nil
	}

	// Re-sort from the store's natural id-descending order so ties land
	// where the new query will put them.
	e.state.Order = order
	e.state.Notes = notes.Sort(storeOrder(e.state.Notes), order)
	e.publish()

	e.metrics.resubscriptions.Inc()
	q, err := e.svc.GetAllNotes(ctx, order)
	if err != nil {
		e.log.Error("live query not restarted", "order", order.String(), "error", err)
		return
	}
	e.query = q
	e.log.Debug("live query restarted", "order", order.String())
}

// storeOrder returns a copy of ns in the id-descending order stores deliver.
func storeOrder(ns []notes.Note) []notes.Note {
	return slices.SortedFunc(slices.Values(ns), func(a, b notes.Note) int {
		return cmp.Compare(b.ID, a.ID)
	})
}

// rearmUndo runs on the mutation worker when a restore failed.
func (e *Engine) rearmUndo(n notes.Note) {
	select {
	case e.restoreFailed <- n:
	case <-e.loopDone:
	}
}

func (e *Engine) loadLayout(ctx context.Context) {
	grid, err := e.prefs.LoadGridLayout(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn("layout preference not loaded", "error", err)
		}
		return
	}
	select {
	case e.layoutLoaded <- grid:
	case <-ctx.Done():
	}
}

func (e *Engine) publish() {
	e.hub.Publish(e.state.clone())
	e.metrics.snapshots.Inc()
}
