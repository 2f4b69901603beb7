package mongo

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

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const notesCollection = "notes"

// watchRetryDelay is the pause before a broken change stream is reopened.
var watchRetryDelay = time.Second

// NotesRepo implements notes.Store on the notes collection. Documents are
// keyed by the note id.
//
// Live subscribers get the whole collection again after every write made
// through this repo. On a replica set a change stream also picks up writes
// made by other processes.
type NotesRepo struct {
	collection *mongo.Collection
	hub        *feed.Hub[[]notes.Note]
	log        *slog.Logger
	watch      bool

	refreshMu sync.Mutex

	startWatch sync.Once
	stopWatch  context.CancelFunc
	watchCtx   context.Context
	watchDone  sync.WaitGroup
	closeOnce  sync.Once
}

var _ notes.Store = (*NotesRepo)(nil)

func repoCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return storectx.WithTimeout(parent, OpTimeout)
}

// translateNotFound maps the driver ErrNoDocuments to the domain-level ErrNoteNotFound.
func translateNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notes.ErrNoteNotFound
	}
	return err
}

// storeErr tags every failure except a missing note as ErrStoreUnavailable.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	err = translateNotFound(err)
	if errors.Is(err, notes.ErrNoteNotFound) || errors.Is(err, notes.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", notes.ErrStoreUnavailable, err)
}

func byID(id int64) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// NewNotesRepo creates a new notes repository
func NewNotesRepo(c *Client, log *slog.Logger) *NotesRepo {
	if log == nil {
		log = logger.L()
	}
	watchCtx, stop := context.WithCancel(context.Background())
	return &NotesRepo{
		collection: c.DB().Collection(notesCollection),
		hub:        feed.NewHub[[]notes.Note]("mongo-notes", 1),
		log:        log.With("collection", notesCollection),
		watch:      c.IsReplicaSet(),
		watchCtx:   watchCtx,
		stopWatch:  stop,
	}
}

func (r *NotesRepo) GetByID(ctx context.Context, id int64) (notes.Note, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var n notes.Note
	if err := r.collection.FindOne(ctx, byID(id)).Decode(&n); err != nil {
		return notes.Note{}, storeErr(err)
	}
	return n, nil
}

func (r *NotesRepo) GetAll(ctx context.Context) ([]notes.Note, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	defer func(ctxToClose context.Context) {
		if cerr := cursor.Close(ctxToClose); cerr != nil {
			r.log.Error("failed to close cursor", "error", cerr)
		}
	}(ctx)

	all := []notes.Note{}
	if err := cursor.All(ctx, &all); err != nil {
		return nil, storeErr(err)
	}
	return all, nil
}

// Subscribe delivers the current collection first. The first call also
// starts the change stream watcher when the deployment supports it.
func (r *NotesRepo) Subscribe(ctx context.Context) (*feed.Subscription[[]notes.Note], error) {
	if _, ok := r.hub.Latest(); !ok {
		if err := r.refresh(ctx); err != nil {
			return nil, err
		}
	}
	r.startWatch.Do(func() {
		if !r.watch {
			return
		}
		r.watchDone.Add(1)
		go func() {
			defer r.watchDone.Done()
			r.watchChanges(r.watchCtx)
		}()
	})
	return r.hub.Subscribe(), nil
}

func (r *NotesRepo) InsertOrReplace(ctx context.Context, n notes.Note) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, byID(n.ID), n, opts); err != nil {
		return storeErr(err)
	}
	r.refreshAfterWrite(ctx)
	return nil
}

func (r *NotesRepo) Delete(ctx context.Context, n notes.Note) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, byID(n.ID))
	if err != nil {
		return storeErr(err)
	}
	if res.DeletedCount == 0 {
		return notes.ErrNoteNotFound
	}
	r.refreshAfterWrite(ctx)
	return nil
}

func (r *NotesRepo) Update(ctx context.Context, n notes.Note) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	res, err := r.collection.ReplaceOne(ctx, byID(n.ID), n)
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return notes.ErrNoteNotFound
	}
	r.refreshAfterWrite(ctx)
	return nil
}

func (r *NotesRepo) UpdateChecked(ctx context.Context, id int64, checked bool) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "checked", Value: checked}}}}
	res, err := r.collection.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return notes.ErrNoteNotFound
	}
	r.refreshAfterWrite(ctx)
	return nil
}

// Close stops the watcher and ends every live subscription.
func (r *NotesRepo) Close() {
	r.closeOnce.Do(func() {
		r.stopWatch()
		r.watchDone.Wait()
		r.hub.Close()
	})
}

// refresh re-reads the collection and publishes it. The lock keeps
// publications in the order the reads were made.
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
	if subs, _ := r.hub.Stats(); subs == 0 {
		if _, ok := r.hub.Latest(); !ok {
			return
		}
	}
	if err := r.refresh(ctx); err != nil {
		r.log.Warn("failed to refresh live notes after write", "error", err)
	}
}

func (r *NotesRepo) watchChanges(ctx context.Context) {
	for ctx.Err() == nil {
		if err := r.watchOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Warn("change stream interrupted, reopening", "error", err, "retry_in", watchRetryDelay)
		}
		select {
		case <-ctx.Done():
		case <-time.After(watchRetryDelay):
		}
	}
}

func (r *NotesRepo) watchOnce(ctx context.Context) error {
	stream, err := r.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stream.Close(context.WithoutCancel(ctx)); cerr != nil {
			r.log.Debug("failed to close change stream", "error", cerr)
		}
	}()

	r.log.Debug("change stream opened")
	// Writes may have happened between the last read and opening the stream.
	if err := r.refresh(ctx); err != nil {
		r.log.Warn("failed to refresh live notes", "error", err)
	}
	for stream.Next(ctx) {
		if err := r.refresh(ctx); err != nil {
			r.log.Warn("failed to refresh live notes", "error", err)
		}
	}
	return stream.Err()
}
