package postgres

import (
	"context"
	"errors"
	"fmt"

	"fido/internal/services/prefs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const layoutKey = "layout"

// PrefsRepo implements prefs.Store as one row of the preferences table.
type PrefsRepo struct {
	pool *pgxpool.Pool
}

var _ prefs.Store = (*PrefsRepo)(nil)

// NewPrefsRepo creates a new preferences repository
func NewPrefsRepo(c *Client) *PrefsRepo {
	return &PrefsRepo{pool: c.Pool()}
}

func (r *PrefsRepo) LoadGridLayout(ctx context.Context) (bool, error) {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	var grid bool
	err := r.pool.QueryRow(ctx, `SELECT grid_layout FROM preferences WHERE key = $1`, layoutKey).Scan(&grid)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	return grid, nil
}

func (r *PrefsRepo) SaveGridLayout(ctx context.Context, grid bool) error {
	ctx, cancel := repoCtx(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO preferences (key, grid_layout) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET grid_layout = EXCLUDED.grid_layout`,
		layoutKey, grid)
	if err != nil {
		return fmt.Errorf("%w: %w", prefs.ErrPrefsUnavailable, err)
	}
	return nil
}
