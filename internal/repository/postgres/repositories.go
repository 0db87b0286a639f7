package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"attendance/internal/model"
	"attendance/internal/repository"
)

type userRepository struct {
	q sqlx.ExtContext
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) (int64, error) {
	query, args, err := sqlx.Named(queryUpsertUser, user)
	if err != nil {
		return 0, fmt.Errorf("failed to build upsert user query: %w", err)
	}
	query = r.q.Rebind(query)

	var id int64
	if err := r.q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert user: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *userRepository) GetByName(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.q, &u, queryGetUserByName, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", name, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := sqlx.SelectContext(ctx, r.q, &users, queryListUsers); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

type attendanceRepository struct {
	q sqlx.ExtContext
}

func (r *attendanceRepository) Insert(ctx context.Context, mark *model.AttendanceMark) error {
	query, args, err := sqlx.Named(queryInsertAttendance, mark)
	if err != nil {
		return fmt.Errorf("failed to build insert attendance query: %w", err)
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%s on %s: %w", mark.Identity, mark.DayKey, repository.ErrDuplicateMark)
		}
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	return nil
}

func (r *attendanceRepository) IdentitiesForDay(ctx context.Context, dayKey string) ([]string, error) {
	var identities []string
	if err := sqlx.SelectContext(ctx, r.q, &identities, queryIdentitiesForDay, dayKey); err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	return identities, nil
}

func (r *attendanceRepository) ListForDay(ctx context.Context, dayKey string) ([]model.AttendanceMark, error) {
	var marks []model.AttendanceMark
	if err := sqlx.SelectContext(ctx, r.q, &marks, queryAttendanceForDay, dayKey); err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return marks, nil
}

type unauthorizedRepository struct {
	q sqlx.ExtContext
}

func (r *unauthorizedRepository) Insert(ctx context.Context, event *model.UnauthorizedEvent) error {
	query, args, err := sqlx.Named(queryInsertUnauthorized, event)
	if err != nil {
		return fmt.Errorf("failed to build insert unauthorized query: %w", err)
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert unauthorized access: %w", err)
	}
	return nil
}

func (r *unauthorizedRepository) ListForDay(ctx context.Context, dayKey string) ([]model.UnauthorizedEvent, error) {
	var events []model.UnauthorizedEvent
	if err := sqlx.SelectContext(ctx, r.q, &events, queryUnauthorizedForDay, dayKey); err != nil {
		return nil, fmt.Errorf("failed to query unauthorized access: %w", err)
	}
	return events, nil
}

type analyticsRepository struct {
	q sqlx.ExtContext
}

func (r *analyticsRepository) Refresh(ctx context.Context, dayKey string) (*model.DailyAnalytics, error) {
	var a model.DailyAnalytics
	if err := sqlx.GetContext(ctx, r.q, &a, queryRefreshAnalytics, dayKey); err != nil {
		return nil, fmt.Errorf("failed to refresh analytics: %w", err)
	}
	return &a, nil
}

func (r *analyticsRepository) Get(ctx context.Context, dayKey string) (*model.DailyAnalytics, error) {
	var a model.DailyAnalytics
	err := sqlx.GetContext(ctx, r.q, &a, queryGetAnalytics, dayKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analytics for %s: %w", dayKey, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return &a, nil
}
