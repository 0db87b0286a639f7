package repository

import (
	"context"
	"errors"

	"attendance/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateMark is returned when an identity already has a stored mark
// for that day.
var ErrDuplicateMark = errors.New("attendance already recorded for this day")

// UserRepository defines the interface for registered user operations.
type UserRepository interface {
	// Upsert inserts the user or updates the email of an existing name.
	Upsert(ctx context.Context, user *model.User) (int64, error)
	GetByName(ctx context.Context, name string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// AttendanceRepository defines the interface for attendance mark operations.
type AttendanceRepository interface {
	Insert(ctx context.Context, mark *model.AttendanceMark) error
	IdentitiesForDay(ctx context.Context, dayKey string) ([]string, error)
	ListForDay(ctx context.Context, dayKey string) ([]model.AttendanceMark, error)
}

// UnauthorizedRepository defines the interface for unauthorized access events.
type UnauthorizedRepository interface {
	Insert(ctx context.Context, event *model.UnauthorizedEvent) error
	ListForDay(ctx context.Context, dayKey string) ([]model.UnauthorizedEvent, error)
}

// AnalyticsRepository maintains the per-day summary.
type AnalyticsRepository interface {
	// Refresh recomputes the summary for dayKey from the stored marks and
	// events.
	Refresh(ctx context.Context, dayKey string) (*model.DailyAnalytics, error)
	Get(ctx context.Context, dayKey string) (*model.DailyAnalytics, error)
}
