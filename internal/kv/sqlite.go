package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// currentSchemaVersion is stored in SQLite's user_version pragma.
// Increment this whenever the kv table layout changes.
const currentSchemaVersion = 1

// sqliteBusyTimeout is the time SQLite waits when the database is locked.
const sqliteBusyTimeout = 10000 // milliseconds

// SQLiteOptions configures [OpenSQLite].
type SQLiteOptions struct {
	// QuotaBytes caps the database size. Writes that would grow the file
	// beyond it fail with [ErrFull]. Zero means no limit.
	QuotaBytes int64
}

// SQLite is a [DB] backed by a single SQLite table.
//
// Write transactions are opened with BEGIN IMMEDIATE so a read-modify-write
// inside [SQLite.Update] cannot interleave with another writer, even from a
// different process.
type SQLite struct {
	sql *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLite, error) {
	if ctx == nil {
		return nil, errors.New("open sqlite: context is nil")
	}

	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	query := url.Values{}
	query.Set("_txlock", "immediate")
	query.Set("_busy_timeout", fmt.Sprint(sqliteBusyTimeout))

	db, err := sql.Open("sqlite3", "file:"+path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas like max_page_count are per connection.
	db.SetMaxOpenConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db, opts)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	err = ensureSchema(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLite{sql: db}, nil
}

// applyPragmas configures the connection using a single batch statement.
func applyPragmas(ctx context.Context, db *sql.DB, opts SQLiteOptions) error {
	_, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
		PRAGMA temp_store = MEMORY;
	`)
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	if opts.QuotaBytes <= 0 {
		return nil
	}

	var pageSize int64

	err = db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	if err != nil {
		return fmt.Errorf("read page_size: %w", err)
	}

	maxPages := max(opts.QuotaBytes/pageSize, 1)

	_, err = db.ExecContext(ctx, fmt.Sprintf("PRAGMA max_page_count = %d", maxPages))
	if err != nil {
		return fmt.Errorf("apply quota: %w", err)
	}

	return nil
}

// ensureSchema creates the kv table when the stored user_version is behind.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	var version int

	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentSchemaVersion {
		return nil
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		) WITHOUT ROWID;
		PRAGMA user_version = %d;
	`, currentSchemaVersion))
	if err != nil {
		return fmt.Errorf("create schema: %w", mapSQLiteErr(err))
	}

	return nil
}

// View runs fn against the committed data. Writes inside fn fail with [ErrReadOnly].
func (s *SQLite) View(ctx context.Context, fn func(tx Tx) error) error {
	if s == nil || s.sql == nil {
		return ErrClosed
	}

	return fn(&sqliteTx{q: s.sql, readOnly: true})
}

// Update runs fn in a write transaction and commits if fn returns nil.
func (s *SQLite) Update(ctx context.Context, fn func(tx Tx) error) error {
	if s == nil || s.sql == nil {
		return ErrClosed
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", mapSQLiteErr(err))
	}

	err = fn(&sqliteTx{q: tx})
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", mapSQLiteErr(err))
	}

	return nil
}

// Close releases the SQLite handle opened by [OpenSQLite].
func (s *SQLite) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}

	err := s.sql.Close()
	s.sql = nil

	if err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}

	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTx struct {
	q        querier
	readOnly bool
}

func (t *sqliteTx) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte

	err := t.q.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, mapSQLiteErr(err))
	}

	return value, nil
}

func (t *sqliteTx) Put(ctx context.Context, key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}

	if value == nil {
		value = []byte{}
	}

	_, err := t.q.ExecContext(ctx, "INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, mapSQLiteErr(err))
	}

	return nil
}

func (t *sqliteTx) Delete(ctx context.Context, key string) error {
	if t.readOnly {
		return ErrReadOnly
	}

	_, err := t.q.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, mapSQLiteErr(err))
	}

	return nil
}

func (t *sqliteTx) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := "SELECT key FROM kv ORDER BY key"
	args := []any{}

	if prefix != "" {
		query = "SELECT key FROM kv WHERE key >= ? AND key < ? ORDER BY key"
		args = append(args, prefix, prefixEnd(prefix))
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, mapSQLiteErr(err))
	}

	defer func() { _ = rows.Close() }()

	keys := []string{}

	for rows.Next() {
		var key string

		scanErr := rows.Scan(&key)
		if scanErr != nil {
			return nil, fmt.Errorf("scan: %w", scanErr)
		}

		// The range bound is byte-wise; keep the prefix check exact.
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return keys, nil
}

// prefixEnd returns the smallest string greater than every string with the prefix.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++

			return string(b[:i+1])
		}
	}

	return string([]byte{0xff, 0xff, 0xff, 0xff})
}

// mapSQLiteErr tags capacity failures with [ErrFull] so callers can tell a
// full store apart from other write errors.
func mapSQLiteErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %w", ErrFull, err)
	}

	return err
}

// Compile-time interface check.
var _ DB = (*SQLite)(nil)
