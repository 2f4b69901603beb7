// Package mongo implements the note and preference stores on MongoDB.
package mongo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fido/internal/clients/storectx"
	"fido/internal/config"
	"fido/internal/logger"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrShutdown is returned by Client methods after Shutdown.
var ErrShutdown = errors.New("mongo client already shut down")

// OpTimeout bounds every single store operation.
const OpTimeout = 5 * time.Second

// Client owns one driver connection pool and the configured database.
type Client struct {
	drv        driver
	cli        *mongo.Client
	db         *mongo.Database
	log        *slog.Logger
	replicaSet atomic.Bool

	mu     sync.Mutex
	closed bool
}

// Connect dials MongoDB, verifies the connection with a ping and probes the
// topology. On failure nothing is left open.
func Connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*Client, error) {
	return connect(ctx, liveDriver{}, cfg, log)
}

func connect(ctx context.Context, drv driver, cfg config.Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = logger.L()
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetConnectTimeout(10 * time.Second).
		SetAppName("fido")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := drv.Connect(ctx, opts)
	if err != nil {
		log.Error("failed to connect to mongo", "err", err)
		return nil, err
	}

	if err := drv.Ping(ctx, cli); err != nil {
		log.Error("failed to ping mongo", "err", err)
		if derr := drv.Disconnect(context.WithoutCancel(ctx), cli); derr != nil {
			log.Warn("disconnect after failed ping", "err", derr)
		}
		return nil, err
	}

	c := &Client{
		drv: drv,
		cli: cli,
		db:  cli.Database(cfg.MongoDBName),
		log: log,
	}

	setName, err := drv.ReplicaSetName(ctx, cli)
	if err != nil {
		log.Warn("could not detect replica set, change streams disabled", "err", err)
	}
	c.replicaSet.Store(setName != "")

	log.Info("successfully connected to mongo",
		"db", cfg.MongoDBName,
		"replica_set", setName)
	return c, nil
}

// DB returns the configured database.
func (c *Client) DB() *mongo.Database {
	return c.db
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrShutdown
	}

	ctx, cancel := storectx.WithTimeout(ctx, OpTimeout)
	defer cancel()
	return c.drv.Ping(ctx, c.cli)
}

// Shutdown disconnects the client. Later calls return ErrShutdown.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrShutdown
	}
	c.closed = true

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return c.drv.Disconnect(ctx, c.cli)
}
