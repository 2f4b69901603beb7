package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fido/internal/clients/storectx"
	"fido/internal/feed"
	"fido/internal/logger"
	"fido/internal/services/notes"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// listenRetryDelay is the pause before a lost LISTEN connection is reopened.
var listenRetryDelay = time.Second

const (
	selectNote  = `SELECT id, title, content, color, pinned, checked FROM notes`
	upsertNote  = `INSERT INTO notes (id, title, content, color, pinned, checked) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, color = EXCLUDED.color, pinned = EXCLUDED.pinned, checked = EXCLUDED.checked`
	updateNote  = `UPDATE notes SET title = $2, content = $3, color = $4, pinned = $5, checked = $6 WHERE id = $1`
	updateCheck = `UPDATE notes SET checked = $2 WHERE id = $1`
	deleteNote  = `DELETE FROM notes WHERE id = $1`
)

// NotesRepo implements notes.Store on the notes table.
//
// Live subscribers get the whole table again after every write made through
// this repo, and after every change notification from other processes.
type NotesRepo struct {
	pool *pgxpool.Pool
	hub  *feed.Hub[[]notes.Note]
	log  *slog.Logger

	refreshMu sync.Mutex

	startListen sync.Once
	stopListen  context.CancelFunc
	listenCtx   context.Context
	listenDone  sync.WaitGroup
	closeOnce   sync.Once
}

var _ notes.Store = (*NotesRepo)(nil)

func repoCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return storectx.WithTimeout(parent, OpTimeout)
}

// storeErr maps pgx.ErrNoRows to ErrNoteNotFound and tags every other
// failure as ErrStoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notes.ErrNoteNotFound
	}
	if errors.Is(err, notes.ErrNoteNotFound) || errors.Is(err, notes.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", notes.ErrStoreUnavailable, err)
}

func scanNote(row pgx.CollectableRow) (notes.Note, error) {
	var n notes.Note
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Color, &n.IsPinned, &n.IsChecked)
	return n, err
}

func noteArgs(n notes.Note) []any {
	return []any{n.ID, n.Title, n.Content, int64(n.Color), n.IsPinned, n.IsChecked}
}

// NewNotesRepo creates a new notes repository
func NewNotesRepo(c *Client, log *slog.Logger) *NotesRepo {
	if log == nil {
		log = logger.L()
	}
	listenCtx, stop := context.WithCancel(context.Background())
	return &NotesRepo{
		pool:       c.Pool(),
		hub:        feed.NewHub[[]notes.Note]("postgres-notes", 1),
		log:        log.With("table", "notes"),
		listenCtx:  listenCtx,
		stopListen: stop,
	}
}

func (r *NotesRepo) GetByID(ctx context.Context, id int64) (notes.Note, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, selectNote+` WHERE id = $1`, id)
	if err != nil {
		return notes.Note{}, storeErr(err)
	}
	n, err := pgx.CollectExactlyOneRow(rows, scanNote)
	if err != nil {
		return notes.Note{}, storeErr(err)
	}
	return n, nil
}

func (r *NotesRepo) GetAll(ctx context.Context) ([]notes.Note, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, selectNote+` ORDER BY id DESC`)
	if err != nil {
		return nil, storeErr(err)
	}
	all, err := pgx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, storeErr(err)
	}
	if all == nil {
		all = []notes.Note{}
	}
	return all, nil
}

// Subscribe delivers the current table first. The first call also starts
// listening for change notifications.
func (r *NotesRepo) Subscribe(ctx context.Context) (*feed.Subscription[[]notes.Note], error) {
	if _, ok := r.hub.Latest(); !ok {
		if err := r.refresh(ctx); err != nil {
			return nil, err
		}
	}
	r.startListen.Do(func() {
		r.listenDone.Add(1)
		go func() {
			defer r.listenDone.Done()
			r.listenChanges(r.listenCtx)
		}()
	})
	return r.hub.Subscribe(), nil
}

func (r *NotesRepo) InsertOrReplace(ctx context.Context, n notes.Note) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	if _, err := r.pool.Exec(ctx, upsertNote, noteArgs(n)...); err != nil {
		return storeErr(err)
	}
	r.refreshAfterWrite(ctx)
	return nil
}

func (r *NotesRepo) Delete(ctx context.Context, n notes.Note) error {
	return r.execOne(ctx, deleteNote, n.ID)
}

func (r *NotesRepo) Update(ctx context.Context, n notes.Note) error {
	return r.execOne(ctx, updateNote, noteArgs(n)...)
}

func (r *NotesRepo) UpdateChecked(ctx context.Context, id int64, checked bool) error {
	return r.execOne(ctx, updateCheck, id, checked)
}

// execOne runs a statement that must touch exactly one existing row.
func (r *NotesRepo) execOne(ctx context.Context, sql string, args ...any) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return notes.ErrNoteNotFound
	}
	r.refreshAfterWrite(ctx)
	return nil
}

// Close stops the listener and ends every live subscription.
func (r *NotesRepo) Close() {
	r.closeOnce.Do(func() {
		r.stopListen()
		r.listenDone.Wait()
		r.hub.Close()
	})
}

// refresh re-reads the table and publishes it. The lock keeps publications
// in the order the reads were made.
func (r *NotesRepo) refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	all, err := r.GetAll(ctx)
	if err != nil {
		return err
	}
	r.hub.Publish(all)
	return nil
}

// refreshAfterWrite is skipped until someone subscribed; the write itself
// already succeeded, so a failed re-read is only logged.
func (r *NotesRepo) refreshAfterWrite(ctx context.Context) {
	if _, ok := r.hub.Latest(); !ok {
		return
	}
	if err := r.refresh(ctx); err != nil {
		r.log.Warn("failed to refresh live notes after write", "error", err)
	}
}

func (r *NotesRepo) listenChanges(ctx context.Context) {
	for ctx.Err() == nil {
		if err := r.listenOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("change listener interrupted, reconnecting", "error", err, "retry_in", listenRetryDelay)
		}
		select {
		case <-ctx.Done():
		case <-time.After(listenRetryDelay):
		}
	}
}

// listenOnce holds one pooled connection in LISTEN mode until it fails or
// ctx ends.
func (r *NotesRepo) listenOnce(ctx context.Context) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	defer func() {
		// the connection returns to the pool, it must not keep listening
		if _, err := conn.Exec(context.WithoutCancel(ctx), "UNLISTEN *"); err != nil {
			r.log.Debug("failed to unlisten", "error", err)
		}
	}()

	r.log.Debug("change listener started", "channel", notifyChannel)
	// Writes may have happened between the last read and LISTEN.
	if err := r.refresh(ctx); err != nil {
		r.log.Warn("failed to refresh live notes", "error", err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		r.log.Debug("notes changed", "op", n.Payload, "pid", n.PID)
		if err := r.refresh(ctx); err != nil {
			r.log.Warn("failed to refresh live notes", "error", err)
		}
	}
}
