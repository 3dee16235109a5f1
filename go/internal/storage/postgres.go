package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DefaultTable is the table Postgres uses when none is configured.
const DefaultTable = "session_storage"

// Querier is the subset of *pgxpool.Pool the Postgres backend needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores values in a (namespace, key) table. Values are kept as
// text so that whatever was written can be read back verbatim, valid or not.
type Postgres struct {
	db        Querier
	table     string
	namespace string
}

// NewPostgres returns a Postgres backend. table is quoted as an identifier.
func NewPostgres(db Querier, table, namespace string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{
		db:        db,
		table:     pq.QuoteIdentifier(table),
		namespace: namespace,
	}
}

// OpenPostgres connects a pool to dsn and makes sure the table exists.
func OpenPostgres(ctx context.Context, dsn, table, namespace string) (*Postgres, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := NewPostgres(pool, table, namespace)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return p, pool, nil
}

// EnsureSchema creates the storage table if it is missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	namespace  TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
)`, p.table)
	if _, err := p.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s: %w", p.table, err)
	}
	log.Debug().Str("table", p.table).Msg("session storage table ready")
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE namespace = $1 AND key = $2`, p.table)

	var value string
	if err := p.db.QueryRow(ctx, query, p.namespace, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, p.table)

	if _, err := p.db.Exec(ctx, stmt, p.namespace, key, string(value)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
