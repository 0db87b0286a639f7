// Package storage persists unauthorized-access snapshots and hands back a
// reference that is recorded with the event.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"attendance/internal/model"
)

// SnapshotStore saves JPEG snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, camera model.CameraID, taken time.Time, data []byte) (string, error)
}

const timestampLayout = "2006-01-02_15-04-05.000"

// SnapshotName is the file name or object key for a snapshot.
func SnapshotName(camera model.CameraID, taken time.Time) string {
	return fmt.Sprintf("unauthorized_%s_cam%d.jpg", taken.Format(timestampLayout), camera)
}

// ParseSnapshotName recovers the camera and capture time from a name made by
// SnapshotName, including the collision suffix DiskStore may append.
func ParseSnapshotName(name string, loc *time.Location) (model.CameraID, time.Time, error) {
	base := strings.TrimSuffix(name, ".jpg")
	if base == name || !strings.HasPrefix(base, "unauthorized_") {
		return 0, time.Time{}, fmt.Errorf("invalid snapshot name: %s", name)
	}
	parts := strings.Split(strings.TrimPrefix(base, "unauthorized_"), "_")
	if len(parts) < 3 || !strings.HasPrefix(parts[2], "cam") {
		return 0, time.Time{}, fmt.Errorf("invalid snapshot name: %s", name)
	}

	if loc == nil {
		loc = time.Local
	}
	taken, err := time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], loc)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(parts[2], "cam"))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse camera: %w", err)
	}
	return model.CameraID(id), taken, nil
}
