package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mythforge/internal/config"
	"mythforge/internal/store"
)

var _ store.Store = (*Client)(nil)

type Client struct {
	pool   *pgxpool.Pool
	schema *config.Schema

	// now is injected so tests can pin timestamps.
	now func() time.Time
}

func New(ctx context.Context, dsn string, schema *config.Schema) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{pool: pool, schema: schema, now: time.Now}, nil
}

func (c *Client) Close(ctx context.Context) error {
	c.pool.Close()
	return nil
}

// SetClock overrides the timestamp source. Tests only.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so row helpers can
// run inside or outside an explicit transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const uniqueViolationCode = "23505"

func isUniqueViolation(err error, table string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode && pgErr.TableName == table
}
