package db

import (
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// KV is the local key/value store the task record lives in
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	SetMany(pairs ...Pair) error
}

// Pair is one key/value write
type Pair struct {
	Key   string
	Value string
}

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens the database at path and initializes the schema
func New(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// DefaultDataDir returns the XDG data directory for the app
func DefaultDataDir() (string, error) {
	// Use XDG data directory or fallback to home directory
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "shiush"), nil
}

// Path returns the database file inside dataDir
func Path(dataDir string) string {
	return filepath.Join(dataDir, "shiush.db")
}

// Get retrieves a setting value by key
func (db *DB) Get(key string) (string, bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set sets a setting value
func (db *DB) Set(key, value string) error {
	return db.SetMany(Pair{Key: key, Value: value})
}

// SetMany writes every pair, in order, inside one transaction
func (db *DB) SetMany(pairs ...Pair) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range pairs {
		_, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, p.Key, p.Value)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
