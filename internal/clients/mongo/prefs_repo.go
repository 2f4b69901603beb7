package mongo

import (
	"context"
	"errors"
	"fmt"

	"fido/internal/services/prefs"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	prefsCollection = "preferences"
	layoutDocID     = "layout"
)

type layoutDoc struct {
	ID         string `bson:"_id"`
	GridLayout bool   `bson:"grid_layout"`
}

// PrefsRepo implements prefs.Store as a single document in the
// preferences collection.
type PrefsRepo struct {
	collection *mongo.Collection
}

var _ prefs.Store = (*PrefsRepo)(nil)

// NewPrefsRepo creates a new preferences repository
func NewPrefsRepo(c *Client) *PrefsRepo {
	return &PrefsRepo{collection: c.DB().Collection(prefsCollection)}
}

func (r *PrefsRepo) LoadGridLayout(ctx context.Context) (bool, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var doc layoutDoc
	err := r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: layoutDocID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	return doc.GridLayout, nil
}

func (r *PrefsRepo) SaveGridLayout(ctx context.Context, grid bool) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	update := bson.D{{Key: "$set", Value: bson.D{{Key: "grid_layout", Value: grid}}}}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.D{{Key: "_id", Value: layoutDocID}}, update, opts); err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	return nil
}
