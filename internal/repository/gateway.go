package repository

import (
	"context"
	"fmt"

	"attendance/internal/model"
)

// Gateway is the persistence surface used by the attendance pipeline. It is
// backed by one database; every write is independent.
type Gateway struct {
	Users        UserRepository
	Attendance   AttendanceRepository
	Unauthorized UnauthorizedRepository
	Analytics    AnalyticsRepository

	closer func() error
}

// NewGateway bundles repositories that share closeFn.
func NewGateway(users UserRepository, attendance AttendanceRepository, unauthorized UnauthorizedRepository, analytics AnalyticsRepository, closeFn func() error) *Gateway {
	return &Gateway{
		Users:        users,
		Attendance:   attendance,
		Unauthorized: unauthorized,
		Analytics:    analytics,
		closer:       closeFn,
	}
}

// MarkedIdentities returns every identity with a mark on dayKey.
func (g *Gateway) MarkedIdentities(ctx context.Context, dayKey string) ([]string, error) {
	ids, err := g.Attendance.IdentitiesForDay(ctx, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load marks for %s: %w", dayKey, err)
	}
	return ids, nil
}

// RecordAttendance stores a mark.
func (g *Gateway) RecordAttendance(ctx context.Context, mark *model.AttendanceMark) error {
	return g.Attendance.Insert(ctx, mark)
}

// RecordUnauthorized stores an unauthorized access event.
func (g *Gateway) RecordUnauthorized(ctx context.Context, event *model.UnauthorizedEvent) error {
	return g.Unauthorized.Insert(ctx, event)
}

// Close releases the underlying database.
func (g *Gateway) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
