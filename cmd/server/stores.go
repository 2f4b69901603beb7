package main

import (
	"context"
	"fmt"
	"log/slog"

	"fido/cmd/server/handlers"
	"fido/internal/clients/memory"
	"fido/internal/clients/mongo"
	"fido/internal/clients/postgres"
	"fido/internal/clients/prefsfile"
	"fido/internal/config"
	"fido/internal/services/notes"
	"fido/internal/services/prefs"
)

// backends are the stores selected by STORE_DRIVER and PREFS_DRIVER.
type backends struct {
	notes  notes.Store
	prefs  prefs.Store
	health handlers.Pinger
	close  func(ctx context.Context) error
}

// openBackends connects the configured note and preference stores.
func openBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (*backends, error) {
	var b backends
	var mg *mongo.Client
	var pg *postgres.Client

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		cli, err := mongo.Connect(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		mg = cli
		repo := mongo.NewNotesRepo(cli, log)
		b.notes = repo
		b.health = cli
		b.close = func(ctx context.Context) error {
			repo.Close()
			return cli.Shutdown(ctx)
		}
		log.Info("connected to mongo", "db", cli.DB().Name(), "replica_set", cli.IsReplicaSet())
	case config.StoreDriverPostgres:
		cli, err := postgres.Connect(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		pg = cli
		repo := postgres.NewNotesRepo(cli, log)
		b.notes = repo
		b.health = cli
		b.close = func(context.Context) error {
			repo.Close()
			return cli.Close()
		}
	default:
		store := memory.NewNotesStore()
		b.notes = store
		b.health = store
		b.close = func(context.Context) error {
			store.Close()
			return nil
		}
		log.Warn("using in-memory note store, notes are lost on restart")
	}

	switch cfg.PrefsDriver {
	case config.PrefsDriverMongo:
		if mg == nil {
			_ = b.close(ctx)
			return nil, config.ErrPrefsDriverNeedMongo
		}
		b.prefs = mongo.NewPrefsRepo(mg)
	case config.PrefsDriverPostgres:
		if pg == nil {
			_ = b.close(ctx)
			return nil, config.ErrPrefsDriverNeedPG
		}
		b.prefs = postgres.NewPrefsRepo(pg)
	default:
		file := prefsfile.New(cfg.PrefsFile)
		b.prefs = file
		log.Info("layout preference file", "path", file.Path())
	}

	return &b, nil
}
