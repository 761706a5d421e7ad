// Package clientdata provides the durable key/value storage the dashboard keeps on the
// client machine. It plays the role browser local storage plays for a web page: session
// credentials written here survive restarts of the bridge.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository stores string values by key in the credentials table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
// The database must already have the client_data schema applied.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Get returns the value stored under key.
// Returns "", false, nil if the key doesn't exist.
func (r *Repository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM credentials WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (r *Repository) Set(key, value string) error {
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO credentials (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (r *Repository) Remove(key string) error {
	if _, err := r.db.Exec("DELETE FROM credentials WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// UpdatedAt returns when key was last written.
func (r *Repository) UpdatedAt(key string) (time.Time, bool, error) {
	var ts int64
	err := r.db.QueryRow("SELECT updated_at FROM credentials WHERE key = ?", key).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read timestamp for %s: %w", key, err)
	}
	return time.Unix(ts, 0), true, nil
}

// Keys lists every stored key.
func (r *Repository) Keys() ([]string, error) {
	rows, err := r.db.Query("SELECT key FROM credentials ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
