package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"anonrelay/store"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the sqlite state backend: the whole document lives in one row.
type DB struct {
	conn *sql.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Name() string { return "sqlite" }

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS state_blob (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			saved_at TEXT NOT NULL,
			size INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	// Auto-migration for new columns
	return db.migrate()
}

// migrate adds columns introduced after the first schema
func (db *DB) migrate() error {
	if !db.columnExists("state_blob", "saved_at") {
		if _, err := db.conn.Exec("ALTER TABLE state_blob ADD COLUMN saved_at TEXT"); err != nil {
			return err
		}
	}
	if !db.columnExists("state_blob", "size") {
		if _, err := db.conn.Exec("ALTER TABLE state_blob ADD COLUMN size INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
		if _, err := db.conn.Exec("UPDATE state_blob SET size = length(payload)"); err != nil {
			return err
		}
	}
	return nil
}

// columnExists checks if a column exists in a table
func (db *DB) columnExists(table, column string) bool {
	query := "SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?"
	var count int
	err := db.conn.QueryRow(query, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

func (db *DB) Read(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := db.conn.QueryRowContext(ctx, "SELECT payload FROM state_blob WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Write replaces the document and records the save in one transaction.
func (db *DB) Write(ctx context.Context, payload []byte) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO state_blob (id, payload, saved_at, size) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at, size = excluded.size`,
		payload, now, len(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO state_history (saved_at, size) VALUES (?, ?)", now, len(payload),
	); err != nil {
		return fmt.Errorf("record save: %w", err)
	}
	return tx.Commit()
}

// SavedAt returns the time of the last successful write.
func (db *DB) SavedAt(ctx context.Context) (time.Time, error) {
	var ts sql.NullString
	err := db.conn.QueryRowContext(ctx, "SELECT saved_at FROM state_blob WHERE id = 1").Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, store.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, ts.String)
}

// SaveCount returns how many writes were recorded.
func (db *DB) SaveCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM state_history").Scan(&count)
	return count, err
}
