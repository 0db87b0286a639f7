package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Camera is one capture device. Source is a device index ("0") or a
// stream URL.
type Camera struct {
	ID     int    `validate:"gte=0"`
	Source string `validate:"required"`
}

type Config struct {
	Port          int `validate:"gt=0,lt=65536"`
	AdminPassword string
	AppEnv        string
	LogLevel      string
	LogDirectory  string

	Cameras        []Camera `validate:"required,min=1,dive"`
	CameraWidth    int      `validate:"gt=0"`
	CameraHeight   int      `validate:"gt=0"`
	CameraFPS      int      `validate:"gt=0"`
	CameraRotation int      `validate:"oneof=0 90 180 270"`
	FrameQueueSize int      `validate:"gte=1"`
	CaptureBackoff time.Duration
	ProcessIdle    time.Duration

	RecognitionThreshold float64 `validate:"gte=0,lte=1"`
	RecognitionStrategy  string  `validate:"oneof=haar dnn"`
	CascadePath          string
	DetectorModelPath    string
	DetectorConfigPath   string
	EmbedderModelPath    string
	GalleryDirectory     string
	Timezone             string

	DBDriver    string `validate:"oneof=sqlite postgres"`
	DBPath      string
	DatabaseURL string `validate:"required_if=DBDriver postgres"`

	LedgerStore   string `validate:"oneof=memory redis"`
	RedisAddress  string `validate:"required_if=LedgerStore redis"`
	RedisPassword string
	RedisDB       int

	SnapshotStore         string `validate:"oneof=disk s3"`
	UnauthorizedDirectory string
	AWSRegion             string `validate:"required_if=SnapshotStore s3"`
	AWSBucket             string `validate:"required_if=SnapshotStore s3"`
	AWSAccessKeyID        string
	AWSSecretAccessKey    string

	SMTPHost              string
	SMTPPort              int
	SMTPMail              string
	SMTPPassword          string
	AdminEmail            string  `validate:"omitempty,email"`
	NotifyQueueSize       int     `validate:"gte=1"`
	UnauthorizedAlertRate float64 `validate:"gte=0"`
}

// Load reads an optional .env file and builds the configuration from the
// environment, falling back to defaults.
func Load() *Config {
	// .env is optional
	_ = godotenv.Load()

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),

		Cameras:        parseCameras(getEnv("CAMERAS", "0")),
		CameraWidth:    getEnvAsInt("CAMERA_WIDTH", 640),
		CameraHeight:   getEnvAsInt("CAMERA_HEIGHT", 480),
		CameraFPS:      getEnvAsInt("CAMERA_FPS", 30),
		CameraRotation: getEnvAsInt("CAMERA_ROTATION", 0),
		FrameQueueSize: getEnvAsInt("FRAME_QUEUE_SIZE", 2),
		CaptureBackoff: getEnvAsDuration("CAPTURE_BACKOFF", time.Second),
		ProcessIdle:    getEnvAsDuration("PROCESS_IDLE", 20*time.Millisecond),

		RecognitionThreshold: getEnvAsFloat("RECOGNITION_THRESHOLD", 0.6),
		RecognitionStrategy:  getEnv("RECOGNITION_STRATEGY", "haar"),
		CascadePath:          getEnv("CASCADE_PATH", "haarcascade_frontalface_default.xml"),
		DetectorModelPath:    getEnv("DETECTOR_MODEL_PATH", filepath.Join(".", "models", "res10_300x300_ssd_iter_140000.caffemodel")),
		DetectorConfigPath:   getEnv("DETECTOR_CONFIG_PATH", filepath.Join(".", "models", "deploy.prototxt")),
		EmbedderModelPath:    getEnv("EMBEDDER_MODEL_PATH", filepath.Join(".", "models", "nn4.small2.v1.t7")),
		GalleryDirectory:     getEnv("GALLERY_DIR", filepath.Join(".", "data", "faces")),
		Timezone:             getEnv("TIMEZONE", "Local"),

		DBDriver:    getEnv("DB_DRIVER", "sqlite"),
		DBPath:      getEnv("DB_PATH", filepath.Join(".", "data", "attendance.db")),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LedgerStore:   getEnv("LEDGER_STORE", "memory"),
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		SnapshotStore:         getEnv("SNAPSHOT_STORE", "disk"),
		UnauthorizedDirectory: getEnv("UNAUTHORIZED_DIR", filepath.Join(".", "Unauthorized_Access")),
		AWSRegion:             getEnv("AWS_REGION", ""),
		AWSBucket:             getEnv("AWS_BUCKET_NAME", ""),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),

		SMTPHost:              getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:              getEnvAsInt("SMTP_PORT", 587),
		SMTPMail:              getEnv("SMTP_MAIL", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		AdminEmail:            getEnv("ADMIN_EMAIL", ""),
		NotifyQueueSize:       getEnvAsInt("NOTIFY_QUEUE_SIZE", 64),
		UnauthorizedAlertRate: getEnvAsFloat("UNAUTHORIZED_ALERT_RATE", 0),
	}
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := make(map[int]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if seen[cam.ID] {
			return fmt.Errorf("invalid configuration: duplicate camera id %d", cam.ID)
		}
		seen[cam.ID] = true
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location returns the time zone used to derive day keys.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// parseCameras accepts "0,1" (device index doubles as id) or
// "1=0,2=rtsp://host/stream".
func parseCameras(value string) []Camera {
	var cameras []Camera
	for i, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, source, ok := strings.Cut(part, "="); ok {
			n, err := strconv.Atoi(strings.TrimSpace(id))
			if err != nil {
				n = i
			}
			cameras = append(cameras, Camera{ID: n, Source: strings.TrimSpace(source)})
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			n = i
		}
		cameras = append(cameras, Camera{ID: n, Source: part})
	}
	return cameras
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
