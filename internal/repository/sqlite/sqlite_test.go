package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attendance/internal/model"
	"attendance/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "attendance_db_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	db, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var day1 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		db, err := New(dbPath)
		if err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		db.Close()
	}
}

// ========================================
// User Repository Tests
// ========================================

func TestUserRepository_UpsertAndGet(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	id, err := repo.Upsert(ctx, &model.User{Name: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive id, got %d", id)
	}

	user, err := repo.GetByName(ctx, "Alice")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if user.ID != id || user.Email != "alice@example.com" {
		t.Errorf("Unexpected user: %+v", user)
	}

	again, err := repo.Upsert(ctx, &model.User{Name: "Alice", Email: "alice@corp.example"})
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if again != id {
		t.Errorf("Expected upsert to keep id %d, got %d", id, again)
	}

	user, _ = repo.GetByName(ctx, "Alice")
	if user.Email != "alice@corp.example" {
		t.Errorf("Expected updated email, got %s", user.Email)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetByName(context.Background(), "Nobody")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_List(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"Carol", "Alice", "Bob"} {
		if _, err := repo.Upsert(ctx, &model.User{Name: name}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 3 || users[0].Name != "Alice" || users[2].Name != "Carol" {
		t.Errorf("Unexpected users: %+v", users)
	}
}

// ========================================
// Attendance Repository Tests
// ========================================

func TestAttendanceRepository_InsertAndList(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	uid, err := users.Upsert(ctx, &model.User{Name: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	mark := model.NewAttendanceMark("Alice", 1, 0.92, day1, "2024-01-01")
	mark.UserID = uid
	if err := repo.Insert(ctx, &mark); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	marks, err := repo.ListForDay(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("ListForDay failed: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("Expected 1 mark, got %d", len(marks))
	}
	got := marks[0]
	if got.ID != mark.ID || got.UserID != uid || got.Camera != 1 || got.Confidence != 0.92 {
		t.Errorf("Unexpected mark: %+v", got)
	}
	if !got.Timestamp.Equal(day1) {
		t.Errorf("Expected timestamp %v, got %v", day1, got.Timestamp)
	}

	other, err := repo.ListForDay(ctx, "2024-01-02")
	if err != nil {
		t.Fatalf("ListForDay failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no marks on another day, got %d", len(other))
	}
}

func TestAttendanceRepository_RejectsDuplicateDay(t *testing.T) {
	repo := NewAttendanceRepository(newTestDB(t))
	ctx := context.Background()

	first := model.NewAttendanceMark("Bob", 1, 0.8, day1, "2024-01-01")
	if err := repo.Insert(ctx, &first); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	second := model.NewAttendanceMark("Bob", 2, 0.9, day1.Add(time.Hour), "2024-01-01")
	if err := repo.Insert(ctx, &second); !errors.Is(err, repository.ErrDuplicateMark) {
		t.Fatalf("Expected ErrDuplicateMark for the same day, got %v", err)
	}

	next := model.NewAttendanceMark("Bob", 1, 0.8, day1.AddDate(0, 0, 1), "2024-01-02")
	if err := repo.Insert(ctx, &next); err != nil {
		t.Fatalf("Insert on next day failed: %v", err)
	}
}

func TestAttendanceRepository_IdentitiesForDay(t *testing.T) {
	repo := NewAttendanceRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"Bob", "Alice"} {
		m := model.NewAttendanceMark(name, 1, 0.9, day1, "2024-01-01")
		if err := repo.Insert(ctx, &m); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	ids, err := repo.IdentitiesForDay(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("IdentitiesForDay failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "Alice" || ids[1] != "Bob" {
		t.Errorf("Unexpected identities: %v", ids)
	}
}

// ========================================
// Unauthorized Repository Tests
// ========================================

func TestUnauthorizedRepository_InsertAndList(t *testing.T) {
	repo := NewUnauthorizedRepository(newTestDB(t))
	ctx := context.Background()

	withImage := model.NewUnauthorizedEvent(2, 0.2, "/tmp/unauthorized_1.jpg", day1, "2024-01-01")
	withoutImage := model.NewUnauthorizedEvent(2, 0.1, "", day1.Add(time.Minute), "2024-01-01")
	for _, ev := range []*model.UnauthorizedEvent{&withImage, &withoutImage} {
		if err := repo.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := repo.ListForDay(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("ListForDay failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].ImageReference != "/tmp/unauthorized_1.jpg" || events[1].ImageReference != "" {
		t.Errorf("Unexpected image references: %q, %q", events[0].ImageReference, events[1].ImageReference)
	}
	if events[0].Camera != 2 {
		t.Errorf("Expected camera 2, got %d", events[0].Camera)
	}
}

// ========================================
// Analytics Repository Tests
// ========================================

func TestAnalyticsRepository_Refresh(t *testing.T) {
	db := newTestDB(t)
	attendance := NewAttendanceRepository(db)
	unauthorized := NewUnauthorizedRepository(db)
	analytics := NewAnalyticsRepository(db)
	ctx := context.Background()

	if _, err := analytics.Get(ctx, "2024-01-01"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before refresh, got %v", err)
	}

	a := model.NewAttendanceMark("Alice", 1, 0.9, day1, "2024-01-01")
	b := model.NewAttendanceMark("Bob", 1, 0.7, day1, "2024-01-01")
	ev := model.NewUnauthorizedEvent(2, 0.2, "", day1, "2024-01-01")
	if err := attendance.Insert(ctx, &a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := attendance.Insert(ctx, &b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := unauthorized.Insert(ctx, &ev); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := analytics.Refresh(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got.AttendanceCount != 2 || got.UnauthorizedCount != 1 {
		t.Errorf("Unexpected counts: %+v", got)
	}
	if got.AverageConfidence < 0.799 || got.AverageConfidence > 0.801 {
		t.Errorf("Expected average confidence 0.8, got %f", got.AverageConfidence)
	}

	stored, err := analytics.Get(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *stored != *got {
		t.Errorf("Stored analytics %+v differ from refreshed %+v", stored, got)
	}
}

// ========================================
// Gateway Tests
// ========================================

func TestGateway_RoundTrip(t *testing.T) {
	gw, err := NewGateway(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	defer gw.Close()
	ctx := context.Background()

	mark := model.NewAttendanceMark("Alice", 1, 0.92, day1, "2024-01-01")
	if err := gw.RecordAttendance(ctx, &mark); err != nil {
		t.Fatalf("RecordAttendance failed: %v", err)
	}
	ev := model.NewUnauthorizedEvent(2, 0.2, "", day1, "2024-01-01")
	if err := gw.RecordUnauthorized(ctx, &ev); err != nil {
		t.Fatalf("RecordUnauthorized failed: %v", err)
	}

	ids, err := gw.MarkedIdentities(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("MarkedIdentities failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "Alice" {
		t.Errorf("Unexpected identities: %v", ids)
	}
}
