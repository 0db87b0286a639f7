package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"attendance/internal/logger"
	"attendance/internal/model"
)

// DiskStore writes snapshots into a directory.
type DiskStore struct {
	imagesDir string
	mu        sync.Mutex
	saved     int
	logger    *logger.Logger
}

// NewDiskStore creates a store rooted at imagesDir. The directory is created
// on first save.
func NewDiskStore(imagesDir string, logger *logger.Logger) *DiskStore {
	return &DiskStore{
		imagesDir: imagesDir,
		logger:    logger,
	}
}

// Save writes data and returns the full path.
func (s *DiskStore) Save(_ context.Context, camera model.CameraID, taken time.Time, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	filename := SnapshotName(camera, taken)
	fullpath := filepath.Join(s.imagesDir, filename)
	if _, err := os.Stat(fullpath); err == nil {
		// Two events in the same millisecond on one camera.
		fullpath = filepath.Join(s.imagesDir, fmt.Sprintf("%s_%d.jpg", filename[:len(filename)-len(".jpg")], s.saved))
	}

	if err := os.WriteFile(fullpath, data, 0644); err != nil {
		return "", fmt.Errorf("error saving image %s: %w", filename, err)
	}
	s.saved++
	s.logger.Debug("Saved unauthorized snapshot %s (%d bytes)", fullpath, len(data))

	return fullpath, nil
}

// Saved returns how many snapshots this store has written.
func (s *DiskStore) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}
