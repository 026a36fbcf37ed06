package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by MustGet when a key is absent or expired.
var ErrNotFound = errors.New("checkpoint not found")

// Put writes value under key, replacing any previous value. A ttl of zero
// keeps the entry until it is deleted.
func (db *DB) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: db.now().Add(ttl).Unix(), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO checkpoints (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, value, expires)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the live value stored under key. The boolean is false when the
// key is missing or expired.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `
		SELECT value FROM checkpoints
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, db.now().Unix()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// MustGet is Get that reports a missing key as ErrNotFound.
func (db *DB) MustGet(ctx context.Context, key string) (string, error) {
	value, ok, err := db.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return value, nil
}

// List returns the live keys starting with prefix in key order.
func (db *DB) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT key FROM checkpoints
		WHERE key >= ? AND key < ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key ASC`,
		prefix, prefixEnd(prefix), db.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (db *DB) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = ?`, key)
	return err
}

// DeleteExpired removes entries whose TTL has elapsed and reports how many were removed.
func (db *DB) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE expires_at IS NOT NULL AND expires_at <= ?`, db.now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Entry is a checkpoint row as shown by inspection commands.
type Entry struct {
	Key       string
	Size      int
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// Describe returns metadata for the live keys under prefix.
func (db *DB) Describe(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT key, length(value), expires_at, updated_at FROM checkpoints
		WHERE key >= ? AND key < ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key ASC`,
		prefix, prefixEnd(prefix), db.now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			expires   sql.NullInt64
			updatedAt string
		)
		if err := rows.Scan(&e.Key, &e.Size, &expires, &updatedAt); err != nil {
			return nil, err
		}
		e.UpdatedAt, _ = parseTime(updatedAt)
		if expires.Valid {
			t := time.Unix(expires.Int64, 0)
			e.ExpiresAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// prefixEnd returns an upper bound for keys starting with prefix so prefix
// scans stay on the primary key index.
func prefixEnd(prefix string) string {
	return prefix + "\U0010FFFF"
}
