package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/tgienger/shiush/internal/models"
)

// OpenCache creates the named cache if it does not exist yet
func (db *DB) OpenCache(ctx context.Context, name string) error {
	_, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO cache_names (name) VALUES (?)", name)
	return err
}

// CacheNames returns every cache name, oldest first
func (db *DB) CacheNames(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM cache_names ORDER BY created_at, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCache deletes a cache and all of its entries. It reports whether the cache existed.
func (db *DB) DeleteCache(ctx context.Context, name string) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_name = ?", name); err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM cache_names WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// PutCacheEntries stores responses keyed by request in the named cache, all or nothing
func (db *DB) PutCacheEntries(ctx context.Context, name string, entries map[string]*models.CachedResponse) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO cache_names (name) VALUES (?)", name); err != nil {
		return err
	}

	for key, resp := range entries {
		header, err := json.Marshal(resp.Header)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cache_entries (cache_name, request_key, status, header, body, response_type, stored_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(cache_name, request_key) DO UPDATE SET
				status = excluded.status,
				header = excluded.header,
				body = excluded.body,
				response_type = excluded.response_type,
				stored_at = excluded.stored_at
		`, name, key, resp.Status, string(header), resp.Body, string(resp.Type))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MatchCache looks up a request key in the named cache
func (db *DB) MatchCache(ctx context.Context, name, key string) (*models.CachedResponse, bool, error) {
	var (
		resp     models.CachedResponse
		header   string
		respType string
	)
	err := db.QueryRowContext(ctx, `
		SELECT status, header, body, response_type, stored_at
		FROM cache_entries WHERE cache_name = ? AND request_key = ?
	`, name, key).Scan(&resp.Status, &header, &resp.Body, &respType, &resp.StoredAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	resp.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return nil, false, err
	}
	resp.Type = models.ResponseType(respType)
	return &resp, true, nil
}

// CacheKeys returns the request keys stored in the named cache
func (db *DB) CacheKeys(ctx context.Context, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT request_key FROM cache_entries WHERE cache_name = ? ORDER BY request_key
	`, name)
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
