package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attendance/internal/model"
	"attendance/internal/repository"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert inserts a user or updates the email of an existing one.
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO users (name, email) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET email = excluded.email
	`, user.Name, user.Email)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}

	var id int64
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT id FROM users WHERE name = ?`, user.Name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return id, nil
}

// GetByName retrieves a user by name.
func (r *UserRepository) GetByName(ctx context.Context, name string) (*model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var u model.User
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, name, email, created_at FROM users WHERE name = ?
	`, name).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", name, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// List returns every user ordered by name.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT id, name, email, created_at FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
