package kv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single-file SQLite database, so live
// course state survives process restarts without an external service.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database at path, creating it if needed.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// One connection serializes all transactions, which is what gives
	// Update its atomicity guarantee.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv(expires_at) WHERE expires_at > 0;
	`
	_, err := s.db.Exec(schema)
	return err
}

// View runs fn against a read-only snapshot.
func (s *SQLite) View(ctx context.Context, fn func(tx ReadTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(&sqliteTx{tx: tx, now: s.now()})
}

// Update runs fn in a transaction, committing only if fn returns nil.
func (s *SQLite) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(&sqliteTx{tx: tx, now: s.now()}); err != nil {
		return err
	}
	return tx.Commit()
}

// PurgeExpired removes expired rows.
func (s *SQLite) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE expires_at > 0 AND expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// sqliteTx reads and writes within one database transaction. The clock
// is fixed at transaction start so every expiry check inside a single
// Update sees the same instant.
type sqliteTx struct {
	tx  *sql.Tx
	now time.Time
}

func (t *sqliteTx) Get(key string) (string, error) {
	var v string
	err := t.tx.QueryRow(
		`SELECT value FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, t.now.UnixMilli(),
	).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (t *sqliteTx) Keys(prefix string) ([]string, error) {
	rows, err := t.tx.Query(
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at > ?) ORDER BY key`,
		likeEscaper.Replace(prefix)+"%", t.now.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (t *sqliteTx) TTL(key string) (time.Duration, error) {
	var exp int64
	err := t.tx.QueryRow(
		`SELECT expires_at FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, t.now.UnixMilli(),
	).Scan(&exp)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if exp == 0 {
		return 0, nil
	}
	return time.UnixMilli(exp).Sub(t.now), nil
}

func (t *sqliteTx) Set(key, value string, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = t.now.Add(ttl).UnixMilli()
	}
	_, err := t.tx.Exec(
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?, expires_at = ?`,
		key, value, exp, value, exp,
	)
	return err
}

func (t *sqliteTx) SetNX(key, value string, ttl time.Duration) (bool, error) {
	// An expired row still occupies the key, so clear it first: the
	// insert below must be decided by liveness, not row presence.
	if _, err := t.tx.Exec(
		`DELETE FROM kv WHERE key = ? AND expires_at > 0 AND expires_at <= ?`,
		key, t.now.UnixMilli(),
	); err != nil {
		return false, err
	}
	var exp int64
	if ttl > 0 {
		exp = t.now.Add(ttl).UnixMilli()
	}
	res, err := t.tx.Exec(
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, value, exp,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *sqliteTx) Delete(key string) error {
	_, err := t.tx.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}
