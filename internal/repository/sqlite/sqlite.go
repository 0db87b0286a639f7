package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"attendance/internal/repository"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// NewGateway opens dbPath and returns the repositories backed by it.
func NewGateway(dbPath string) (*repository.Gateway, error) {
	db, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	return repository.NewGateway(
		NewUserRepository(db),
		NewAttendanceRepository(db),
		NewUnauthorizedRepository(db),
		NewAnalyticsRepository(db),
		db.Close,
	), nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		user_id INTEGER,
		identity TEXT NOT NULL,
		camera_id INTEGER NOT NULL,
		confidence REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		day_key TEXT NOT NULL,
		UNIQUE (identity, day_key),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS unauthorized_access (
		id TEXT PRIMARY KEY,
		camera_id INTEGER NOT NULL,
		confidence REAL NOT NULL,
		image_path TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL,
		day_key TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics (
		day_key TEXT PRIMARY KEY,
		attendance_count INTEGER NOT NULL DEFAULT 0,
		unauthorized_count INTEGER NOT NULL DEFAULT 0,
		average_confidence REAL NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_day_key ON attendance(day_key);
	CREATE INDEX IF NOT EXISTS idx_unauthorized_day_key ON unauthorized_access(day_key);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
