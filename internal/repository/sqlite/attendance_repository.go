package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"attendance/internal/model"
	"attendance/internal/repository"
)

// AttendanceRepository implements repository.AttendanceRepository for SQLite.
type AttendanceRepository struct {
	db *DB
}

// NewAttendanceRepository creates a new SQLite attendance repository.
func NewAttendanceRepository(db *DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert adds a mark. A second mark for the same identity and day fails on
// the unique constraint.
func (r *AttendanceRepository) Insert(ctx context.Context, mark *model.AttendanceMark) error {
	r.db.Lock()
	defer r.db.Unlock()

	var userID sql.NullInt64
	if mark.UserID > 0 {
		userID = sql.NullInt64{Int64: mark.UserID, Valid: true}
	}

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO attendance (id, user_id, identity, camera_id, confidence, timestamp, day_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, mark.ID, userID, mark.Identity, int(mark.Camera), mark.Confidence, mark.Timestamp.UTC(), mark.DayKey)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%s on %s: %w", mark.Identity, mark.DayKey, repository.ErrDuplicateMark)
		}
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

// IdentitiesForDay returns the identities marked on dayKey.
func (r *AttendanceRepository) IdentitiesForDay(ctx context.Context, dayKey string) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT identity FROM attendance WHERE day_key = ? ORDER BY identity`, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []string
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

// ListForDay returns the marks of dayKey in timestamp order.
func (r *AttendanceRepository) ListForDay(ctx context.Context, dayKey string) ([]model.AttendanceMark, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, COALESCE(user_id, 0), identity, camera_id, confidence, timestamp, day_key
		FROM attendance WHERE day_key = ? ORDER BY timestamp
	`, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var marks []model.AttendanceMark
	for rows.Next() {
		var m model.AttendanceMark
		var camera int
		if err := rows.Scan(&m.ID, &m.UserID, &m.Identity, &camera, &m.Confidence, &m.Timestamp, &m.DayKey); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		m.Camera = model.CameraID(camera)
		marks = append(marks, m)
	}
	return marks, rows.Err()
}
