package sqlite

import (
	"context"
	"fmt"

	"attendance/internal/model"
)

// UnauthorizedRepository implements repository.UnauthorizedRepository for SQLite.
type UnauthorizedRepository struct {
	db *DB
}

// NewUnauthorizedRepository creates a new SQLite unauthorized access repository.
func NewUnauthorizedRepository(db *DB) *UnauthorizedRepository {
	return &UnauthorizedRepository{db: db}
}

// Insert adds an unauthorized access event.
func (r *UnauthorizedRepository) Insert(ctx context.Context, event *model.UnauthorizedEvent) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO unauthorized_access (id, camera_id, confidence, image_path, timestamp, day_key)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.ID, int(event.Camera), event.Confidence, event.ImageReference, event.Timestamp.UTC(), event.DayKey)
	if err != nil {
		return fmt.Errorf("failed to insert unauthorized access: %w", err)
	}
	return nil
}

// ListForDay returns the events of dayKey in timestamp order.
func (r *UnauthorizedRepository) ListForDay(ctx context.Context, dayKey string) ([]model.UnauthorizedEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, camera_id, confidence, image_path, timestamp, day_key
		FROM unauthorized_access WHERE day_key = ? ORDER BY timestamp
	`, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query unauthorized access: %w", err)
	}
	defer rows.Close()

	var events []model.UnauthorizedEvent
	for rows.Next() {
		var e model.UnauthorizedEvent
		var camera int
		if err := rows.Scan(&e.ID, &camera, &e.Confidence, &e.ImageReference, &e.Timestamp, &e.DayKey); err != nil {
			return nil, fmt.Errorf("failed to scan unauthorized access: %w", err)
		}
		e.Camera = model.CameraID(camera)
		events = append(events, e)
	}
	return events, rows.Err()
}
