// Package postgres implements the note and preference stores on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fido/internal/config"
	"fido/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrShutdown is returned by Client methods after Close.
var ErrShutdown = errors.New("postgres client already closed")

// OpTimeout bounds every single store operation.
const OpTimeout = 5 * time.Second

// Client owns the connection pool.
type Client struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Connect opens a pool, verifies it with a ping and creates the schema when
// it is missing. On failure nothing is left open.
func Connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = logger.L()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_URL: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "fido"

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("failed to create postgres pool", "err", err)
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Error("failed to ping postgres", "err", err)
		pool.Close()
		return nil, err
	}

	if err := migrate(ctx, pool); err != nil {
		log.Error("failed to prepare postgres schema", "err", err)
		pool.Close()
		return nil, err
	}

	log.Info("successfully connected to postgres",
		"host", poolCfg.ConnConfig.Host,
		"db", poolCfg.ConnConfig.Database)
	return &Client{pool: pool, log: log}, nil
}

// Pool returns the underlying pool.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrShutdown
	}

	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()
	return c.pool.Ping(ctx)
}

// Close releases every pooled connection. A second call returns ErrShutdown.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrShutdown
	}
	c.closed = true
	c.pool.Close()
	c.log.Info("postgres pool closed")
	return nil
}
