package notelist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fido/internal/clients/memory"
	"fido/internal/feed"
	"fido/internal/services/notes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var silentLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	store   notes.Store
	notes   *memory.NotesStore
	prefs   *memory.PrefsStore
	metrics *Metrics
	engine  *Engine
}

type fixtureOpt func(*fixture)

func withStore(wrap func(*memory.NotesStore) notes.Store) fixtureOpt {
	return func(f *fixture) { f.store = wrap(f.notes) }
}

func withPrefs(p *memory.PrefsStore) fixtureOpt {
	return func(f *fixture) { f.prefs = p }
}

// newFixture builds a started engine over in-memory stores.
func newFixture(t *testing.T, seed []notes.Note, engineOpts []Option, opts ...fixtureOpt) *fixture {
	t.Helper()

	f := &fixture{
		notes:   memory.NewNotesStore(seed...),
		prefs:   memory.NewPrefsStore(false),
		metrics: NewMetrics(prometheus.NewRegistry()),
	}
	f.store = f.notes
	for _, opt := range opts {
		opt(f)
	}

	svc := notes.NewService(f.store, silentLogger)
	engineOpts = append([]Option{WithMetrics(f.metrics)}, engineOpts...)
	f.engine = New(svc, f.prefs, silentLogger, engineOpts...)
	require.NoError(t, f.engine.Start(context.Background()))
	t.Cleanup(func() {
		f.engine.Stop()
		f.notes.Close()
	})
	return f
}

func (f *fixture) dispatch(t *testing.T, events ...Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, f.engine.Dispatch(context.Background(), ev))
	}
}

func (f *fixture) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.engine.Flush(ctx))
}

func (f *fixture) storeNotes(t *testing.T) []notes.Note {
	t.Helper()
	all, err := f.notes.GetAll(context.Background())
	require.NoError(t, err)
	return all
}

func (f *fixture) waitSnapshot(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return cond(f.engine.Snapshot()) }, waitFor, tick)
	return f.engine.Snapshot()
}

func ids(list []notes.Note) []int64 {
	out := make([]int64, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func titles(list []notes.Note) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.Title)
	}
	return out
}

func hasNotes(n int) func(Snapshot) bool {
	return func(s Snapshot) bool { return len(s.Notes) == n }
}

func TestEngine_InitialSnapshot(t *testing.T) {
	svc := notes.NewService(memory.NewNotesStore(), silentLogger)
	e := New(svc, nil, silentLogger, WithDefaultGridLayout(true))
	defer e.Stop()

	s := e.Snapshot()
	assert.Empty(t, s.Notes)
	assert.NotNil(t, s.Notes)
	assert.Equal(t, notes.DefaultOrder, s.Order)
	assert.True(t, s.GridLayout)
	assert.False(t, s.OrderPanelVisible)
	assert.False(t, s.SearchVisible)
}

func TestEngine_LiveListFollowsStore(t *testing.T) {
	f := newFixture(t, []notes.Note{{ID: 0, Title: "b"}, {ID: 1, Title: "a"}}, nil)

	s := f.waitSnapshot(t, hasNotes(2))
	assert.Equal(t, []string{"a", "b"}, titles(s.Notes))

	require.NoError(t, f.notes.InsertOrReplace(context.Background(), notes.Note{ID: 5, Title: "0"}))
	s = f.waitSnapshot(t, hasNotes(3))
	assert.Equal(t, []string{"0", "a", "b"}, titles(s.Notes))
}

func TestEngine_SetOrderTitleAscendingDescending(t *testing.T) {
	f := newFixture(t, []notes.Note{{ID: 0, Title: "B"}, {ID: 1, Title: "A"}}, nil)
	f.waitSnapshot(t, hasNotes(2))

	f.dispatch(t, SetOrder{Order: notes.OrderBy{Key: notes.OrderByTitle, Direction: notes.Ascending}})
	s := f.waitSnapshot(t, func(s Snapshot) bool { return len(s.Notes) == 2 && s.Notes[0].Title == "A" })
	assert.Equal(t, []string{"A", "B"}, titles(s.Notes))

	desc := notes.OrderBy{Key: notes.OrderByTitle, Direction: notes.Descending}
	f.dispatch(t, SetOrder{Order: desc})
	s = f.waitSnapshot(t, func(s Snapshot) bool { return s.Order == desc })
	assert.Equal(t, []string{"B", "A"}, titles(s.Notes))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.resubscriptions))
}

func TestEngine_SetOrderTiesFollowStoreOrder(t *testing.T) {
	f := newFixture(t, []notes.Note{
		{ID: 0, Title: "A", Color: 1},
		{ID: 1, Title: "A", Color: 2},
	}, nil)
	f.waitSnapshot(t, hasNotes(2))

	byColor := notes.OrderBy{Key: notes.OrderByColor, Direction: notes.Ascending}
	f.dispatch(t, SetOrder{Order: byColor})
	s := f.waitSnapshot(t, func(s Snapshot) bool { return s.Order == byColor })
	require.Equal(t, []int64{0, 1}, ids(s.Notes))

	snaps := f.engine.Subscribe()
	defer snaps.Cancel()

	byTitle := notes.OrderBy{Key: notes.OrderByTitle, Direction: notes.Ascending}
	f.dispatch(t, SetOrder{Order: byTitle})
	f.flush(t)

	// equal titles keep the id-descending store order in every snapshot,
	// including the one published before the new query delivers
	var seen [][]int64
	deadline := time.After(waitFor)
	for len(seen) < 2 {
		select {
		case snap := <-snaps.Ch:
			if snap.Order == byTitle {
				seen = append(seen, ids(snap.Notes))
			}
		case <-deadline:
			require.NotEmpty(t, seen, "no snapshot with the new order")
			for _, got := range seen {
				assert.Equal(t, []int64{1, 0}, got)
			}
			return
		}
	}
	for _, got := range seen {
		assert.Equal(t, []int64{1, 0}, got)
	}
}

// trackingStore records every live subscription and whether an older one
// was still open when a new one was requested.
type trackingStore struct {
	*memory.NotesStore

	mu      sync.Mutex
	subs    []*feed.Subscription[[]notes.Note]
	overlap bool
}

func (s *trackingStore) Subscribe(ctx context.Context) (*feed.Subscription[[]notes.Note], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, old := range s.subs {
		select {
		case <-old.Done:
		default:
			s.overlap = true
		}
	}
	sub, err := s.NotesStore.Subscribe(ctx)
	if err == nil {
		s.subs = append(s.subs, sub)
	}
	return sub, err
}

func (s *trackingStore) stats() (subs int, overlap bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs), s.overlap
}

func TestEngine_SetOrderSupersedesPreviousQuery(t *testing.T) {
	seed := []notes.Note{
		{ID: 0, Title: "c", Color: 1},
		{ID: 1, Title: "a", Color: 3},
		{ID: 2, Title: "b", Color: 2},
	}
	var tracker *trackingStore
	f := newFixture(t, seed, nil, withStore(func(m *memory.NotesStore) notes.Store {
		tracker = &trackingStore{NotesStore: m}
		return tracker
	}))
	f.waitSnapshot(t, hasNotes(3))

	snaps := f.engine.Subscribe()
	defer snaps.Cancel()

	var (
		wg         sync.WaitGroup
		misordered atomic.Int32
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for s := range snaps.Ch {
			if !assert.ObjectsAreEqual(ids(notes.Sort(s.Notes, s.Order)), ids(s.Notes)) {
				misordered.Add(1)
			}
		}
	}()

	orders := []notes.OrderBy{
		{Key: notes.OrderByColor, Direction: notes.Ascending},
		{Key: notes.OrderByTitle, Direction: notes.Descending},
		{Key: notes.OrderByDate, Direction: notes.Ascending},
		{Key: notes.OrderByColor, Direction: notes.Descending},
	}
	for i := range 20 {
		f.dispatch(t, SetOrder{Order: orders[i%len(orders)]})
		if i%5 == 0 {
			require.NoError(t, f.notes.InsertOrReplace(context.Background(),
				notes.Note{ID: int64(10 + i), Title: "n", Color: i}))
		}
	}
	final := notes.OrderBy{Key: notes.OrderByTitle, Direction: notes.Ascending}
	f.dispatch(t, SetOrder{Order: final})
	f.flush(t)

	want := notes.Sort(f.storeNotes(t), final)
	f.waitSnapshot(t, func(s Snapshot) bool {
		return s.Order == final && assert.ObjectsAreEqual(ids(want), ids(s.Notes))
	})

	f.engine.Stop()
	wg.Wait()

	subs, overlap := tracker.stats()
	assert.Equal(t, 22, subs, "one query at start plus one per order change")
	assert.False(t, overlap, "a new query was issued while the previous one was still open")
	assert.Zero(t, misordered.Load(), "a snapshot was not ordered by its own order")
}

func TestEngine_AddNoteUsesVisibleCount(t *testing.T) {
	f := newFixture(t, []notes.Note{{ID: 0, Title: "x"}, {ID: 1, Title: "y"}}, nil)
	f.waitSnapshot(t, hasNotes(2))

	f.dispatch(t, AddNote{})
	f.flush(t)

	n, err := f.notes.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, notes.PlaceholderTitle, n.Title)
	f.waitSnapshot(t, hasNotes(3))
}

func TestEngine_AddNoteOnEmptyList(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.dispatch(t, AddNote{})
	f.flush(t)

	assert.Equal(t, []int64{0}, ids(f.storeNotes(t)))
}

func TestEngine_RemoveThenRestoreRoundTrip(t *testing.T) {
	seed := []notes.Note{
		{ID: 0, Title: "first", Content: "one", Color: 4},
		{ID: 1, Title: "", Content: "untitled on purpose", IsPinned: true, IsChecked: true},
		{ID: 2, Title: "third", Color: 1},
	}
	f := newFixture(t, seed, nil)
	f.waitSnapshot(t, hasNotes(3))
	before := f.storeNotes(t)

	f.dispatch(t, RemoveNote{Note: seed[1]}, RestoreNote{})
	f.flush(t)

	assert.Equal(t, before, f.storeNotes(t))
	assert.Zero(t, testutil.ToFloat64(f.metrics.failedMutations.WithLabelValues(EventRestoreNote)))
}

func TestEngine_UndoKeepsOnlyLatestRemoval(t *testing.T) {
	a := notes.Note{ID: 0, Title: "a"}
	b := notes.Note{ID: 1, Title: "b"}
	f := newFixture(t, []notes.Note{a, b}, nil)
	f.waitSnapshot(t, hasNotes(2))

	f.dispatch(t, RemoveNote{Note: a}, RemoveNote{Note: b}, RestoreNote{})
	f.flush(t)

	assert.Equal(t, []notes.Note{b}, f.storeNotes(t))

	// the slot is empty again
	f.dispatch(t, RestoreNote{})
	f.flush(t)
	assert.Equal(t, []notes.Note{b}, f.storeNotes(t))
}

func TestEngine_RestoreWithEmptyBufferIsNoop(t *testing.T) {
	f := newFixture(t, []notes.Note{{ID: 0, Title: "a"}}, nil)
	f.waitSnapshot(t, hasNotes(1))
	before := f.storeNotes(t)

	f.dispatch(t, RestoreNote{})
	f.flush(t)

	assert.Equal(t, before, f.storeNotes(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.events.WithLabelValues(EventRestoreNote)))
}

// flakyStore fails the next failInserts upserts.
type flakyStore struct {
	*memory.NotesStore
	failInserts atomic.Int32
}

func (s *flakyStore) InsertOrReplace(ctx context.Context, n notes.Note) error {
	if s.failInserts.Add(-1) >= 0 {
		return notes.ErrStoreUnavailable
	}
	return s.NotesStore.InsertOrReplace(ctx, n)
}

func TestEngine_FailedRestoreKeepsNoteForRetry(t *testing.T) {
	n := notes.Note{ID: 7, Title: "keep me"}
	var flaky *flakyStore
	f := newFixture(t, []notes.Note{n}, nil, withStore(func(m *memory.NotesStore) notes.Store {
		flaky = &flakyStore{NotesStore: m}
		return flaky
	}))
	f.waitSnapshot(t, hasNotes(1))

	f.dispatch(t, RemoveNote{Note: n})
	f.flush(t)
	f.waitSnapshot(t, hasNotes(0))

	flaky.failInserts.Store(1)
	f.dispatch(t, RestoreNote{})
	f.flush(t)
	assert.Empty(t, f.storeNotes(t))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.failedMutations.WithLabelValues(EventRestoreNote)))
	assert.Empty(t, f.engine.Snapshot().Notes, "a failed write must not change the snapshot")

	f.dispatch(t, RestoreNote{})
	f.flush(t)
	assert.Equal(t, []notes.Note{n}, f.storeNotes(t))
}

func TestEngine_ToggleCheckedIsInvolution(t *testing.T) {
	orig := notes.Note{ID: 3, Title: "todo", Content: "x", Color: 2}
	f := newFixture(t, []notes.Note{orig}, nil)
	f.waitSnapshot(t, hasNotes(1))

	f.dispatch(t, ToggleChecked{Note: orig})
	f.flush(t)
	once, err := f.notes.GetByID(context.Background(), orig.ID)
	require.NoError(t, err)
	assert.True(t, once.IsChecked)

	f.dispatch(t, ToggleChecked{Note: once})
	f.flush(t)
	twice, err := f.notes.GetByID(context.Background(), orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig, twice)
}

func TestEngine_TogglePinned(t *testing.T) {
	orig := notes.Note{ID: 1, Title: "pin"}
	f := newFixture(t, []notes.Note{orig}, nil)
	f.waitSnapshot(t, hasNotes(1))

	f.dispatch(t, TogglePinned{Note: orig})
	s := f.waitSnapshot(t, func(s Snapshot) bool { return len(s.Notes) == 1 && s.Notes[0].IsPinned })
	assert.False(t, s.Notes[0].IsChecked)
}

func TestEngine_FailedMutationLeavesSnapshot(t *testing.T) {
	f := newFixture(t, []notes.Note{{ID: 0, Title: "a"}}, nil)
	before := f.waitSnapshot(t, hasNotes(1))

	f.dispatch(t, ToggleChecked{Note: notes.Note{ID: 99, Title: "ghost"}})
	f.flush(t)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.failedMutations.WithLabelValues(EventToggleChecked)))
	assert.Equal(t, before, f.engine.Snapshot())
}

func TestEngine_PanelFlags(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.dispatch(t, ToggleOrderPanel{}, ToggleSearch{})
	s := f.waitSnapshot(t, func(s Snapshot) bool { return s.OrderPanelVisible && s.SearchVisible })
	assert.Empty(t, s.Notes)

	f.dispatch(t, ToggleSearch{})
	f.waitSnapshot(t, func(s Snapshot) bool { return s.OrderPanelVisible && !s.SearchVisible })
	assert.Zero(t, f.prefs.Saves(), "panel flags are not persisted")
}

func TestEngine_LayoutLoadedFromPreferences(t *testing.T) {
	f := newFixture(t, nil, nil, withPrefs(memory.NewPrefsStore(true)))

	f.waitSnapshot(t, func(s Snapshot) bool { return s.GridLayout })
}

func TestEngine_LayoutLoadFailureKeepsDefault(t *testing.T) {
	p := memory.NewPrefsStore(false)
	p.FailLoad = errors.New("disk gone")
	f := newFixture(t, nil, []Option{WithDefaultGridLayout(true)}, withPrefs(p))

	assert.Never(t, func() bool { return !f.engine.Snapshot().GridLayout }, 100*time.Millisecond, tick)
}

func TestEngine_ToggleLayoutPersists(t *testing.T) {
	p := memory.NewPrefsStore(false)
	f := newFixture(t, nil, nil, withPrefs(p))

	f.dispatch(t, ToggleLayout{})
	f.waitSnapshot(t, func(s Snapshot) bool { return s.GridLayout })
	require.Eventually(t, p.GridLayout, waitFor, tick)
}

func TestEngine_ToggleLayoutSavesLatestValue(t *testing.T) {
	p := memory.NewPrefsStore(false)
	f := newFixture(t, nil, nil, withPrefs(p))

	for range 5 {
		f.dispatch(t, ToggleLayout{})
	}
	f.flush(t)
	f.engine.Stop()

	assert.True(t, p.GridLayout())
	assert.True(t, f.engine.Snapshot().GridLayout)
	assert.GreaterOrEqual(t, p.Saves(), 1)
	assert.LessOrEqual(t, p.Saves(), 5)
}

func TestEngine_PreferenceSaveFailureIsSwallowed(t *testing.T) {
	p := memory.NewPrefsStore(false)
	p.FailSave = errors.New("read-only")
	f := newFixture(t, nil, nil, withPrefs(p))

	f.dispatch(t, ToggleLayout{})
	f.waitSnapshot(t, func(s Snapshot) bool { return s.GridLayout })
	f.flush(t)

	assert.True(t, f.engine.Snapshot().GridLayout, "visible flag is never reverted")
	assert.False(t, p.GridLayout())
}

func TestEngine_LateLayoutLoadDoesNotOverrideToggle(t *testing.T) {
	p := memory.NewPrefsStore(true)
	p.FailSave = errors.New("read-only")
	release := p.HoldLoad()
	f := newFixture(t, nil, nil, withPrefs(p))

	f.dispatch(t, ToggleLayout{}, ToggleLayout{})
	f.flush(t)
	require.False(t, f.engine.Snapshot().GridLayout)

	release()
	assert.Never(t, func() bool { return f.engine.Snapshot().GridLayout }, 150*time.Millisecond, tick)
}

func TestEngine_Lifecycle(t *testing.T) {
	svc := notes.NewService(memory.NewNotesStore(), silentLogger)
	e := New(svc, memory.NewPrefsStore(false), silentLogger)

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineRunning)

	sub := e.Subscribe()
	assert.Equal(t, 1, e.Subscribers())

	e.Stop()
	e.Stop()

	select {
	case <-sub.Done:
	default:
		t.Fatal("subscriptions must end with the engine")
	}
	assert.ErrorIs(t, e.Dispatch(context.Background(), AddNote{}), ErrEngineStopped)
	assert.ErrorIs(t, e.Flush(context.Background()), ErrEngineStopped)
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineStopped)
	assert.Equal(t, 0, e.Subscribers())
}

func TestEngine_StopBeforeStart(t *testing.T) {
	svc := notes.NewService(memory.NewNotesStore(), silentLogger)
	e := New(svc, nil, silentLogger)
	e.Stop()

	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineStopped)
}

func TestEngine_StartFailsWithoutQuery(t *testing.T) {
	store := memory.NewNotesStore()
	svc := notes.NewService(store, silentLogger)
	e := New(svc, nil, silentLogger)
	defer e.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Start(ctx)
	assert.ErrorIs(t, err, notes.ErrListNotes)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_DispatchNilEvent(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.ErrorIs(t, f.engine.Dispatch(context.Background(), nil), ErrUnknownEvent)
}

func TestEngine_EventMetrics(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.dispatch(t, ToggleSearch{}, ToggleSearch{}, AddNote{})
	f.flush(t)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.events.WithLabelValues(EventToggleSearch)))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.events.WithLabelValues(EventAddNote)))
	assert.Positive(t, testutil.ToFloat64(f.metrics.snapshots))
}
