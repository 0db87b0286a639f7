package model

import (
	"time"

	"github.com/google/uuid"
)

// DayKeyLayout formats the calendar date used as a ledger partition.
const DayKeyLayout = "2006-01-02"

// DayKey returns the calendar date of t in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayKeyLayout)
}

// AttendanceMark records that an identity was seen present on a day.
type AttendanceMark struct {
	ID         string    `json:"id" db:"id"`
	Identity   string    `json:"identity" db:"identity"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Camera     CameraID  `json:"camera_id" db:"camera_id"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	DayKey     string    `json:"day_key" db:"day_key"`
}

// NewAttendanceMark builds a mark with a fresh id.
func NewAttendanceMark(identity string, camera CameraID, confidence float64, now time.Time, dayKey string) AttendanceMark {
	return AttendanceMark{
		ID:         uuid.NewString(),
		Identity:   identity,
		Camera:     camera,
		Confidence: confidence,
		Timestamp:  now,
		DayKey:     dayKey,
	}
}

// UnauthorizedEvent records a detection that failed recognition. It never
// carries an identity.
type UnauthorizedEvent struct {
	ID             string    `json:"id" db:"id"`
	Camera         CameraID  `json:"camera_id" db:"camera_id"`
	Confidence     float64   `json:"confidence" db:"confidence"`
	ImageReference string    `json:"image_reference" db:"image_path"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	DayKey         string    `json:"day_key" db:"day_key"`
}

// NewUnauthorizedEvent builds an event with a fresh id.
func NewUnauthorizedEvent(camera CameraID, confidence float64, imageRef string, now time.Time, dayKey string) UnauthorizedEvent {
	return UnauthorizedEvent{
		ID:             uuid.NewString(),
		Camera:         camera,
		Confidence:     confidence,
		ImageReference: imageRef,
		Timestamp:      now,
		DayKey:         dayKey,
	}
}

// User is a registered person that can be marked present.
type User struct {
	ID        int64     `json:"id" db:"id" yaml:"-"`
	Name      string    `json:"name" db:"name" yaml:"name"`
	Email     string    `json:"email" db:"email" yaml:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// DailyAnalytics summarises one day of activity.
type DailyAnalytics struct {
	DayKey            string  `json:"day_key" db:"day_key"`
	AttendanceCount   int     `json:"attendance_count" db:"attendance_count"`
	UnauthorizedCount int     `json:"unauthorized_count" db:"unauthorized_count"`
	AverageConfidence float64 `json:"average_confidence" db:"average_confidence"`
}
