// Package unauthorized records detections that fail recognition.
package unauthorized

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/service/storage"
)

// Recorder persists unauthorized events.
type Recorder interface {
	RecordUnauthorized(ctx context.Context, event *model.UnauthorizedEvent) error
}

// Log saves a snapshot for every event and records it. There is no
// deduplication: each call produces a new event.
type Log struct {
	snapshots storage.SnapshotStore
	recorder  Recorder
	loc       *time.Location
	logger    *logger.Logger
}

// NewLog creates a Log. snapshots may be nil, in which case events carry no
// image reference.
func NewLog(snapshots storage.SnapshotStore, recorder Recorder, loc *time.Location, logger *logger.Logger) *Log {
	if loc == nil {
		loc = time.Local
	}
	return &Log{snapshots: snapshots, recorder: recorder, loc: loc, logger: logger}
}

// Record saves frame and appends the event. A snapshot failure is logged and
// the event is recorded without an image reference. The returned event is
// valid even when the error is non-nil.
func (l *Log) Record(ctx context.Context, camera model.CameraID, confidence float64, frame []byte, now time.Time) (model.UnauthorizedEvent, error) {
	var imageRef string
	if l.snapshots != nil && len(frame) > 0 {
		ref, err := l.snapshots.Save(ctx, camera, now, frame)
		if err != nil {
			l.logger.Warning("Failed to save unauthorized snapshot for camera %d: %v", camera, err)
		} else {
			imageRef = ref
		}
	}

	event := model.NewUnauthorizedEvent(camera, confidence, imageRef, now, model.DayKey(now, l.loc))
	if err := l.recorder.RecordUnauthorized(ctx, &event); err != nil {
		return event, fmt.Errorf("failed to record unauthorized access on camera %d: %w", camera, err)
	}

	l.logger.WithFields(logger.Fields{
		"camera":     int(camera),
		"confidence": confidence,
		"image":      imageRef,
	}).Info("Unauthorized access recorded")
	return event, nil
}
