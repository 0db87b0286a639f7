package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attendance/internal/model"
	"attendance/internal/repository"
)

// AnalyticsRepository implements repository.AnalyticsRepository for SQLite.
type AnalyticsRepository struct {
	db *DB
}

// NewAnalyticsRepository creates a new SQLite analytics repository.
func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Refresh recomputes and stores the summary for dayKey.
func (r *AnalyticsRepository) Refresh(ctx context.Context, dayKey string) (*model.DailyAnalytics, error) {
	r.db.Lock()
	defer r.db.Unlock()

	a := model.DailyAnalytics{DayKey: dayKey}
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM attendance WHERE day_key = ?
	`, dayKey).Scan(&a.AttendanceCount, &a.AverageConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}

	err = r.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM unauthorized_access WHERE day_key = ?
	`, dayKey).Scan(&a.UnauthorizedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate unauthorized access: %w", err)
	}

	_, err = r.db.Conn().ExecContext(ctx, `
		INSERT INTO analytics (day_key, attendance_count, unauthorized_count, average_confidence, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(day_key) DO UPDATE SET
			attendance_count = excluded.attendance_count,
			unauthorized_count = excluded.unauthorized_count,
			average_confidence = excluded.average_confidence,
			updated_at = CURRENT_TIMESTAMP
	`, a.DayKey, a.AttendanceCount, a.UnauthorizedCount, a.AverageConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to store analytics: %w", err)
	}

	return &a, nil
}

// Get returns the stored summary for dayKey.
func (r *AnalyticsRepository) Get(ctx context.Context, dayKey string) (*model.DailyAnalytics, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var a model.DailyAnalytics
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT day_key, attendance_count, unauthorized_count, average_confidence
		FROM analytics WHERE day_key = ?
	`, dayKey).Scan(&a.DayKey, &a.AttendanceCount, &a.UnauthorizedCount, &a.AverageConfidence)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analytics for %s: %w", dayKey, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return &a, nil
}
