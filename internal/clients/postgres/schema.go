package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel carries one notification per statement that changed notes.
const notifyChannel = "fido_notes_changed"

// schemaLock serialises schema setup between processes starting together.
const schemaLock = 0x6f6964 // "fid"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notes (
		id      BIGINT PRIMARY KEY,
		title   TEXT    NOT NULL,
		content TEXT    NOT NULL DEFAULT '',
		color   BIGINT  NOT NULL DEFAULT 0,
		pinned  BOOLEAN NOT NULL DEFAULT FALSE,
		checked BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS preferences (
		key         TEXT PRIMARY KEY,
		grid_layout BOOLEAN NOT NULL
	)`,
	`CREATE OR REPLACE FUNCTION fido_notes_notify() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + notifyChannel + `', TG_OP);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS fido_notes_changed ON notes`,
	`CREATE TRIGGER fido_notes_changed
		AFTER INSERT OR UPDATE OR DELETE ON notes
		FOR EACH STATEMENT EXECUTE FUNCTION fido_notes_notify()`,
}

// migrate creates the tables and the change trigger in one transaction.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLock); err != nil {
			return err
		}
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
