package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/rival/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	identifier TEXT NOT NULL,
	payload JSONB NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_stored_at ON artifacts (namespace, stored_at);
`

const columns = `namespace, key, identifier, payload, stored_at`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Get(ctx context.Context, class storage.Class, key string) (*storage.Record, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM artifacts WHERE namespace = $1 AND key = $2`,
		string(class), key)

	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get: %w", err)
	}
	return r, nil
}

func (b *postgresBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO artifacts (` + columns + `)
	VALUES ($1, $2, $3, $4::jsonb, $5)
	ON CONFLICT (namespace, key) DO UPDATE SET
		identifier = EXCLUDED.identifier,
		payload = EXCLUDED.payload,
		stored_at = EXCLUDED.stored_at
	`

	_, err := b.pool.Exec(ctx, query,
		string(r.Class),
		r.Key,
		r.Identifier,
		string(r.Payload),
		r.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("postgres save: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT ` + columns + ` FROM artifacts WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Class != "" {
		query += fmt.Sprintf(` AND namespace = $%d`, paramCount)
		args = append(args, string(filter.Class))
		paramCount++
	}
	if filter.Key != "" {
		query += fmt.Sprintf(` AND key = $%d`, paramCount)
		args = append(args, filter.Key)
		paramCount++
	}
	if filter.StoredBefore != nil {
		query += fmt.Sprintf(` AND stored_at < $%d`, paramCount)
		args = append(args, *filter.StoredBefore)
		paramCount++
	}
	if filter.StoredSince != nil {
		query += fmt.Sprintf(` AND stored_at >= $%d`, paramCount)
		args = append(args, *filter.StoredSince)
		paramCount++
	}

	query += ` ORDER BY stored_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Delete(ctx context.Context, class storage.Class, key string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM artifacts WHERE namespace = $1 AND key = $2`, string(class), key); err != nil {
		return fmt.Errorf("postgres delete: %w", err)
	}
	return nil
}

func (b *postgresBackend) DeleteStale(ctx context.Context, class storage.Class, key string, cutoff time.Time) (bool, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM artifacts WHERE namespace = $1 AND key = $2 AND stored_at < $3`,
		string(class), key, cutoff)
	if err != nil {
		return false, fmt.Errorf("postgres delete stale: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *postgresBackend) Purge(ctx context.Context, class storage.Class, cutoff time.Time) (int64, error) {
	tag, err := b.pool.Exec(ctx,
		`DELETE FROM artifacts WHERE namespace = $1 AND stored_at < $2`,
		string(class), cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*storage.Record, error) {
	var (
		r         storage.Record
		namespace string
		payload   []byte
	)
	if err := row.Scan(&namespace, &r.Key, &r.Identifier, &payload, &r.StoredAt); err != nil {
		return nil, err
	}
	r.Class = storage.Class(namespace)
	r.Payload = payload
	r.StoredAt = r.StoredAt.UTC()
	return &r, nil
}
