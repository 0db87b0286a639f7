package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"attendance/internal/logger"
	"attendance/internal/model"
)

// ErrDeviceUnavailable is returned by Start when the capture device cannot
// be opened.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// DefaultBackoff is the wait between retries after a failed read.
const DefaultBackoff = time.Second

// Settings describes how to open a capture device.
type Settings struct {
	Source string
	Width  int
	Height int
	FPS    int
}

// Image is one raw read from a device, already JPEG encoded.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Device is an opened capture device. Read may block until the next frame.
type Device interface {
	Read() (Image, error)
	Close() error
}

// Opener opens a device with the given settings.
type Opener func(settings Settings) (Device, error)

// Transform is applied to every frame before it is queued. It must not keep
// state between calls.
type Transform func(img Image) (Image, error)

// Stats are capture counters for one camera.
type Stats struct {
	Captured   uint64
	Dropped    uint64
	ReadErrors uint64
	Queued     int
}

// Source owns one capture device and feeds frames into a bounded queue from
// its own goroutine.
type Source struct {
	camera    model.CameraID
	settings  Settings
	open      Opener
	transform Transform
	queue     *FrameQueue
	backoff   time.Duration
	now       func() time.Time
	logger    *logger.Logger

	device Device
	seq    uint64

	captured   atomic.Uint64
	readErrors atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Option configures a Source.
type Option func(*Source)

// WithTransform sets the per-frame transform.
func WithTransform(t Transform) Option {
	return func(s *Source) { s.transform = t }
}

// WithBackoff sets the wait after a failed read.
func WithBackoff(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.backoff = d
		}
	}
}

// WithQueueSize sets the frame queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Source) { s.queue = NewFrameQueue(n) }
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// NewSource creates a stopped Source for one camera.
func NewSource(camera model.CameraID, settings Settings, open Opener, opts ...Option) *Source {
	s := &Source{
		camera:   camera,
		settings: settings,
		open:     open,
		queue:    NewFrameQueue(DefaultQueueSize),
		backoff:  DefaultBackoff,
		now:      time.Now,
		logger:   logger.Discard(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logger.Fields{"camera_id": int(camera)})
	return s
}

// Camera returns the camera id.
func (s *Source) Camera() model.CameraID {
	return s.camera
}

// Start opens the device and launches the capture loop. A device that cannot
// be opened yields ErrDeviceUnavailable and leaves the Source stopped.
func (s *Source) Start() error {
	err := errors.New("source already started")
	s.startOnce.Do(func() {
		device, openErr := s.open(s.settings)
		if openErr != nil {
			close(s.done)
			err = fmt.Errorf("camera %d (%s): %w: %v", s.camera, s.settings.Source, ErrDeviceUnavailable, openErr)
			return
		}
		s.device = device
		err = nil
		s.logger.Info("📷 Camera %d opened (%s, %dx%d@%d)", s.camera, s.settings.Source, s.settings.Width, s.settings.Height, s.settings.FPS)
		go s.run()
	})
	return err
}

// Stop signals the capture loop, waits for it to finish its current
// iteration and releases the device. Safe to call more than once.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.startOnce.Do(func() { close(s.done) })
		close(s.stop)
	})
	<-s.done
}

// Next returns the oldest queued frame without blocking.
func (s *Source) Next() (model.Frame, bool) {
	return s.queue.TryPop()
}

// Stats returns a snapshot of the capture counters.
func (s *Source) Stats() Stats {
	return Stats{
		Captured:   s.captured.Load(),
		Dropped:    s.queue.Dropped(),
		ReadErrors: s.readErrors.Load(),
		Queued:     s.queue.Len(),
	}
}

func (s *Source) run() {
	defer close(s.done)
	defer func() {
		if err := s.device.Close(); err != nil {
			s.logger.Warning("Failed to release camera %d: %v", s.camera, err)
		}
		s.logger.Info("🛑 Camera %d capture stopped", s.camera)
	}()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		img, err := s.device.Read()
		if err != nil {
			s.readErrors.Add(1)
			s.logger.Warning("Could not capture frame from camera %d: %v", s.camera, err)
			select {
			case <-s.stop:
				return
			case <-time.After(s.backoff):
			}
			continue
		}

		if s.transform != nil {
			transformed, err := s.transform(img)
			if err != nil {
				s.logger.Warning("Frame transform failed on camera %d: %v", s.camera, err)
			} else {
				img = transformed
			}
		}

		s.seq++
		s.captured.Add(1)
		s.queue.Push(model.Frame{
			Camera:     s.camera,
			Image:      img.Data,
			Width:      img.Width,
			Height:     img.Height,
			Seq:        s.seq,
			CapturedAt: s.now(),
		})
	}
}
