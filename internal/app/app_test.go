package app

import (
	"context"
	"path/filepath"
	"testing"

	"attendance/internal/config"
	"attendance/internal/logger"
	"attendance/internal/repository"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:                  8080,
		AppEnv:                "test",
		Cameras:               []config.Camera{{ID: 0, Source: "0"}},
		CameraWidth:           640,
		CameraHeight:          480,
		CameraFPS:             30,
		FrameQueueSize:        2,
		RecognitionThreshold:  0.6,
		RecognitionStrategy:   "haar",
		Timezone:              "UTC",
		DBDriver:              "sqlite",
		DBPath:                filepath.Join(dir, "attendance.db"),
		LedgerStore:           "memory",
		SnapshotStore:         "disk",
		UnauthorizedDirectory: filepath.Join(dir, "snapshots"),
		NotifyQueueSize:       4,
	}
}

func TestNewAppClosesGatewayOnFailure(t *testing.T) {
	closed := 0
	openGateway = func(ctx context.Context, cfg *config.Config) (*repository.Gateway, error) {
		gw, err := OpenGateway(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewGateway(gw.Users, gw.Attendance, gw.Unauthorized, gw.Analytics, func() error {
			closed++
			return gw.Close()
		}), nil
	}
	t.Cleanup(func() { openGateway = OpenGateway })

	cfg := testConfig(t)
	// Rejected while building the camera pipelines, after the gateway is open.
	cfg.CameraRotation = 45

	if _, err := NewApp(context.Background(), cfg, logger.Discard()); err == nil {
		t.Fatal("Expected NewApp to fail for an unsupported rotation")
	}
	if closed != 1 {
		t.Errorf("Expected the gateway to be closed once, got %d", closed)
	}
}

func TestOpenGatewayUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "mysql"
	if _, err := OpenGateway(context.Background(), cfg); err == nil {
		t.Error("Expected error for unknown driver")
	}
}
