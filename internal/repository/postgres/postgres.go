// Package postgres implements the repositories on PostgreSQL with sqlx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"attendance/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance (
	id UUID PRIMARY KEY,
	user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
	identity TEXT NOT NULL,
	camera_id INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	day_key TEXT NOT NULL,
	UNIQUE (identity, day_key)
);

CREATE TABLE IF NOT EXISTS unauthorized_access (
	id UUID PRIMARY KEY,
	camera_id INTEGER NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	image_path TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL,
	day_key TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS analytics (
	day_key TEXT PRIMARY KEY,
	attendance_count INTEGER NOT NULL DEFAULT 0,
	unauthorized_count INTEGER NOT NULL DEFAULT 0,
	average_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_day_key ON attendance(day_key);
CREATE INDEX IF NOT EXISTS idx_unauthorized_day_key ON unauthorized_access(day_key);
`

// New connects to databaseURL and applies the schema.
func New(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// NewGateway connects and returns the repositories backed by PostgreSQL.
func NewGateway(ctx context.Context, databaseURL string) (*repository.Gateway, error) {
	db, err := New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return repository.NewGateway(
		&userRepository{q: db},
		&attendanceRepository{q: db},
		&unauthorizedRepository{q: db},
		&analyticsRepository{q: db},
		db.Close,
	), nil
}
