// Package clickhouse wraps the native ClickHouse driver behind small
// interfaces so the query layer can be faked in tests.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
)

// Client represents a ClickHouse database connection.
type Client interface {
	Conn(ctx context.Context) (Connection, error)
	Close() error
}

// Connection represents a ClickHouse connection. The surface is
// read-only: nothing in this system issues DDL or writes.
type Connection interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Close() error
}

type client struct {
	conn driver.Conn
	log  *slog.Logger
}

type connection struct {
	conn driver.Conn
}

// Config holds the connection settings for a ClickHouse client.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string

	// MaxExecutionTime bounds a single statement server-side, in seconds.
	MaxExecutionTime int
}

// NewClient opens a ClickHouse connection and verifies it with a ping,
// retrying with exponential backoff so startup tolerates a database that
// is still coming up.
func NewClient(ctx context.Context, log *slog.Logger, cfg Config) (Client, error) {
	if cfg.MaxExecutionTime == 0 {
		cfg.MaxExecutionTime = 60
	}
	options := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": cfg.MaxExecutionTime,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ping := func() error { return conn.Ping(ctx) }
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(ping, bo); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("ClickHouse client initialized", "addr", cfg.Addr, "database", cfg.Database)

	return &client{
		conn: conn,
		log:  log,
	}, nil
}

func (c *client) Conn(ctx context.Context) (Connection, error) {
	return &connection{conn: c.conn}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}

func (c *connection) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.conn.Query(ctx, query, args...)
}

func (c *connection) Close() error {
	// The underlying connection is pooled and shared, don't close it.
	return nil
}
