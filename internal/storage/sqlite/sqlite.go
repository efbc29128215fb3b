package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/rival/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// stored_at holds unix nanoseconds so range predicates compare numerically.
const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	identifier TEXT NOT NULL,
	payload TEXT NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_stored_at ON artifacts (namespace, stored_at);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY under
	// concurrent collection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Get(ctx context.Context, class storage.Class, key string) (*storage.Record, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT namespace, key, identifier, payload, stored_at FROM artifacts WHERE namespace = ? AND key = ?`,
		string(class), key)

	r, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return r, nil
}

func (b *sqliteBackend) Save(ctx context.Context, r *storage.Record) error {
	query := `
	INSERT INTO artifacts (namespace, key, identifier, payload, stored_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (namespace, key) DO UPDATE SET
		identifier = excluded.identifier,
		payload = excluded.payload,
		stored_at = excluded.stored_at
	`

	_, err := b.db.ExecContext(ctx, query,
		string(r.Class),
		r.Key,
		r.Identifier,
		string(r.Payload),
		r.StoredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite save: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT namespace, key, identifier, payload, stored_at FROM artifacts WHERE 1=1`
	args := []any{}

	if filter.Class != "" {
		query += ` AND namespace = ?`
		args = append(args, string(filter.Class))
	}
	if filter.Key != "" {
		query += ` AND key = ?`
		args = append(args, filter.Key)
	}
	if filter.StoredBefore != nil {
		query += ` AND stored_at < ?`
		args = append(args, filter.StoredBefore.UnixNano())
	}
	if filter.StoredSince != nil {
		query += ` AND stored_at >= ?`
		args = append(args, filter.StoredSince.UnixNano())
	}

	query += ` ORDER BY stored_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Delete(ctx context.Context, class storage.Class, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM artifacts WHERE namespace = ? AND key = ?`, string(class), key)
	if err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

func (b *sqliteBackend) DeleteStale(ctx context.Context, class storage.Class, key string, cutoff time.Time) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE namespace = ? AND key = ? AND stored_at < ?`,
		string(class), key, cutoff.UnixNano())
	if err != nil {
		return false, fmt.Errorf("sqlite delete stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite delete stale: %w", err)
	}
	return n > 0, nil
}

func (b *sqliteBackend) Purge(ctx context.Context, class storage.Class, cutoff time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM artifacts WHERE namespace = ? AND stored_at < ?`,
		string(class), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return n, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}

func scanRecord(scan func(dest ...any) error) (*storage.Record, error) {
	var (
		r         storage.Record
		namespace string
		payload   string
		storedAt  int64
	)
	if err := scan(&namespace, &r.Key, &r.Identifier, &payload, &storedAt); err != nil {
		return nil, err
	}
	r.Class = storage.Class(namespace)
	r.Payload = []byte(payload)
	r.StoredAt = time.Unix(0, storedAt).UTC()
	return &r, nil
}
