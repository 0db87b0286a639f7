package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMERAS", "")
	t.Setenv("RECOGNITION_THRESHOLD", "")
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if len(cfg.Cameras) != 1 || cfg.Cameras[0].ID != 0 || cfg.Cameras[0].Source != "0" {
		t.Errorf("Expected default camera 0, got %+v", cfg.Cameras)
	}
	if cfg.RecognitionThreshold != 0.6 {
		t.Errorf("Expected threshold 0.6, got %v", cfg.RecognitionThreshold)
	}
	if cfg.DBDriver != "sqlite" || cfg.LedgerStore != "memory" || cfg.SnapshotStore != "disk" {
		t.Errorf("Unexpected backends: %s %s %s", cfg.DBDriver, cfg.LedgerStore, cfg.SnapshotStore)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAMERAS", "1=0,2=rtsp://cam/stream")
	t.Setenv("RECOGNITION_THRESHOLD", "0.75")
	t.Setenv("CAPTURE_BACKOFF", "250ms")
	t.Setenv("PORT", "not-a-number")
	cfg := Load()

	if len(cfg.Cameras) != 2 || cfg.Cameras[1].ID != 2 || cfg.Cameras[1].Source != "rtsp://cam/stream" {
		t.Errorf("Unexpected cameras %+v", cfg.Cameras)
	}
	if cfg.RecognitionThreshold != 0.75 {
		t.Errorf("Expected threshold 0.75, got %v", cfg.RecognitionThreshold)
	}
	if cfg.CaptureBackoff != 250*time.Millisecond {
		t.Errorf("Expected 250ms backoff, got %v", cfg.CaptureBackoff)
	}
	if cfg.Port != 8080 {
		t.Errorf("Invalid PORT should fall back to 8080, got %d", cfg.Port)
	}
}

func TestParseCameras(t *testing.T) {
	tests := []struct {
		in   string
		want []Camera
	}{
		{"0", []Camera{{ID: 0, Source: "0"}}},
		{"0, 1", []Camera{{ID: 0, Source: "0"}, {ID: 1, Source: "1"}}},
		{"3=0,4=1", []Camera{{ID: 3, Source: "0"}, {ID: 4, Source: "1"}}},
		{"rtsp://a,1", []Camera{{ID: 0, Source: "rtsp://a"}, {ID: 1, Source: "1"}}},
		{"", nil},
	}

	for _, tt := range tests {
		got := parseCameras(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseCameras(%q) = %+v, want %+v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseCameras(%q)[%d] = %+v, want %+v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"duplicate camera", func(c *Config) { c.Cameras = []Camera{{ID: 1, Source: "0"}, {ID: 1, Source: "1"}} }, "duplicate camera id 1"},
		{"no cameras", func(c *Config) { c.Cameras = nil }, "Cameras"},
		{"threshold above one", func(c *Config) { c.RecognitionThreshold = 1.5 }, "RecognitionThreshold"},
		{"unknown strategy", func(c *Config) { c.RecognitionStrategy = "lbph" }, "RecognitionStrategy"},
		{"postgres without url", func(c *Config) { c.DBDriver = "postgres" }, "DatabaseURL"},
		{"redis without address", func(c *Config) { c.LedgerStore = "redis" }, "RedisAddress"},
		{"s3 without bucket", func(c *Config) { c.SnapshotStore = "s3"; c.AWSRegion = "eu-west-1" }, "AWSBucket"},
		{"bad admin email", func(c *Config) { c.AdminEmail = "admin" }, "AdminEmail"},
		{"bad rotation", func(c *Config) { c.CameraRotation = 45 }, "CameraRotation"},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	loc, err := cfg.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Expected Local, got %v, %v", loc, err)
	}

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Errorf("Expected UTC, got %v, %v", loc, err)
	}
}

func validConfig() *Config {
	return &Config{
		Port:                 8080,
		Cameras:              []Camera{{ID: 0, Source: "0"}},
		CameraWidth:          640,
		CameraHeight:         480,
		CameraFPS:            30,
		FrameQueueSize:       2,
		RecognitionThreshold: 0.6,
		RecognitionStrategy:  "haar",
		Timezone:             "Local",
		DBDriver:             "sqlite",
		LedgerStore:          "memory",
		SnapshotStore:        "disk",
		NotifyQueueSize:      64,
	}
}
