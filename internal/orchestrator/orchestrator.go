// Package orchestrator binds capture, recognition, the attendance ledger and
// the notification path for every configured camera.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"attendance/internal/capture"
	"attendance/internal/ledger"
	"attendance/internal/logger"
	"attendance/internal/model"
	"attendance/internal/notify"
	"attendance/internal/repository"
	"attendance/internal/service/live"
	"attendance/internal/unauthorized"
)

// DefaultIdle is the wait between polls of an empty frame queue.
const DefaultIdle = 20 * time.Millisecond

// FrameSource is the capture side of a pipeline.
type FrameSource interface {
	Camera() model.CameraID
	Start() error
	Stop()
	Next() (model.Frame, bool)
	Stats() capture.Stats
}

// Recognizer maps a frame to thresholded results.
type Recognizer interface {
	Recognize(frame model.Frame) ([]model.RecognitionResult, error)
}

// Annotator draws results onto a frame for viewers.
type Annotator interface {
	Annotate(img []byte, results []model.RecognitionResult) ([]byte, error)
}

// Broadcaster publishes frames to live viewers.
type Broadcaster interface {
	ClientCount() int
	Broadcast(msg live.FrameMessage) bool
}

// Pipeline is one camera's source and its own recognition engine.
type Pipeline struct {
	Source FrameSource
	Engine Recognizer
}

// Deps are the collaborators injected into the orchestrator.
type Deps struct {
	Pipelines    []Pipeline
	Ledger       *ledger.Ledger
	Gateway      *repository.Gateway
	Unauthorized *unauthorized.Log
	Notifier     *notify.Notifier
	Logger       *logger.Logger

	// Optional.
	Annotator  Annotator
	Viewers    Broadcaster
	Pacer      notify.Pacer
	AdminEmail string
	Idle       time.Duration
	Clock      func() time.Time
}

// CameraStats reports one pipeline.
type CameraStats struct {
	Camera            model.CameraID `json:"camera"`
	Running           bool           `json:"running"`
	Captured          uint64         `json:"captured"`
	Dropped           uint64         `json:"dropped"`
	ReadErrors        uint64         `json:"read_errors"`
	Processed         uint64         `json:"processed"`
	RecognitionErrors uint64         `json:"recognition_errors"`
}

// Stats reports the whole system.
type Stats struct {
	Cameras      []CameraStats `json:"cameras"`
	Marked       uint64        `json:"marked"`
	Unauthorized uint64        `json:"unauthorized"`
	Unregistered uint64        `json:"unregistered"`
	Divergences  uint64        `json:"divergences"`
	LateMarks    uint64        `json:"late_marks"`
	Notify       notify.Stats  `json:"notify"`
}

type camera struct {
	Pipeline
	running           atomic.Bool
	processed         atomic.Uint64
	recognitionErrors atomic.Uint64
}

// Orchestrator owns the per-camera processing loops.
type Orchestrator struct {
	deps    Deps
	cameras []*camera
	logger  *logger.Logger

	marked       atomic.Uint64
	unauthorized atomic.Uint64
	unregistered atomic.Uint64
	divergences  atomic.Uint64
	lateMarks    atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  atomic.Bool
	stopOnce sync.Once
}

// New validates deps and creates an orchestrator. Nothing runs until Start.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case len(deps.Pipelines) == 0:
		return nil, errors.New("no cameras configured")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Gateway == nil:
		return nil, errors.New("persistence gateway is required")
	case deps.Unauthorized == nil:
		return nil, errors.New("unauthorized log is required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	if deps.Idle <= 0 {
		deps.Idle = DefaultIdle
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	o := &Orchestrator{deps: deps, logger: deps.Logger}
	for _, p := range deps.Pipelines {
		o.cameras = append(o.cameras, &camera{Pipeline: p})
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	return o, nil
}

// Start seeds the ledger from persistence, starts the notifier and every
// camera. A camera that cannot be opened is logged and skipped; Start fails
// only when no camera could be started.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("orchestrator already started")
	}

	now := o.deps.Clock()
	dayKey := o.deps.Ledger.DayKey(now)
	identities, err := o.deps.Gateway.MarkedIdentities(ctx, dayKey)
	if err != nil {
		return fmt.Errorf("failed to load today's attendance: %w", err)
	}
	if err := o.deps.Ledger.LoadToday(ctx, identities, now); err != nil {
		return fmt.Errorf("failed to seed ledger: %w", err)
	}
	o.logger.Info("Loaded %d attendance marks for %s", len(identities), dayKey)

	o.deps.Notifier.Start()

	running := 0
	for _, cam := range o.cameras {
		if err := cam.Source.Start(); err != nil {
			o.logger.Error("Camera %d unavailable: %v", cam.Source.Camera(), err)
			continue
		}
		cam.running.Store(true)
		running++

		o.wg.Add(1)
		go o.processLoop(cam)
		o.logger.Info("Camera %d started", cam.Source.Camera())
	}

	if running == 0 {
		return fmt.Errorf("none of %d cameras could be started: %w", len(o.cameras), capture.ErrDeviceUnavailable)
	}
	return nil
}

// Stop stops every source, waits for the processing loops, drains the
// notifier and closes persistence.
func (o *Orchestrator) Stop(ctx context.Context) error {
	var errs []error
	o.stopOnce.Do(func() {
		for _, cam := range o.cameras {
			cam.Source.Stop()
		}
		o.cancel()
		o.wg.Wait()

		if err := o.deps.Notifier.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
		if err := o.deps.Gateway.Close(); err != nil {
			errs = append(errs, fmt.Errorf("persistence: %w", err))
		}

		for _, cs := range o.Stats().Cameras {
			o.logger.Info("Camera %d: captured %d, dropped %d, read errors %d, processed %d",
				cs.Camera, cs.Captured, cs.Dropped, cs.ReadErrors, cs.Processed)
		}
	})
	return errors.Join(errs...)
}

// Stats returns a snapshot of all counters.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Marked:       o.marked.Load(),
		Unauthorized: o.unauthorized.Load(),
		Unregistered: o.unregistered.Load(),
		Divergences:  o.divergences.Load(),
		LateMarks:    o.lateMarks.Load(),
		Notify:       o.deps.Notifier.Stats(),
	}
	for _, cam := range o.cameras {
		cs := cam.Source.Stats()
		s.Cameras = append(s.Cameras, CameraStats{
			Camera:            cam.Source.Camera(),
			Running:           cam.running.Load(),
			Captured:          cs.Captured,
			Dropped:           cs.Dropped,
			ReadErrors:        cs.ReadErrors,
			Processed:         cam.processed.Load(),
			RecognitionErrors: cam.recognitionErrors.Load(),
		})
	}
	return s
}

func (o *Orchestrator) processLoop(cam *camera) {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			return
		default:
		}

		frame, ok := cam.Source.Next()
		if !ok {
			select {
			case <-o.ctx.Done():
				return
			case <-time.After(o.deps.Idle):
			}
			continue
		}

		o.processFrame(cam, frame)
	}
}

func (o *Orchestrator) processFrame(cam *camera, frame model.Frame) {
	defer cam.processed.Add(1)

	results, err := cam.Engine.Recognize(frame)
	if err != nil {
		cam.recognitionErrors.Add(1)
		o.logger.Warning("Camera %d frame %d skipped: %v", frame.Camera, frame.Seq, err)
		return
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = o.deps.Clock()
	}

	for _, result := range results {
		if result.Accepted {
			o.handleRecognized(frame.Camera, result, at)
		} else {
			o.handleUnauthorized(frame, result, at)
		}
	}

	o.publish(frame, results)
}

func (o *Orchestrator) handleRecognized(cam model.CameraID, result model.RecognitionResult, at time.Time) {
	ctx := o.ctx
	log := o.logger.WithFields(logger.Fields{"camera": int(cam), "identity": result.Identity})

	user, err := o.deps.Gateway.Users.GetByName(ctx, result.Identity)
	if errors.Is(err, repository.ErrNotFound) {
		o.unregistered.Add(1)
		log.Warning("Recognized %s is not a registered user, attendance not marked", result.Identity)
		return
	}
	if err != nil {
		log.Error("Failed to look up user %s: %v", result.Identity, err)
		return
	}

	outcome, err := o.deps.Ledger.TryMark(ctx, result.Identity, cam, result.Confidence, at)
	if errors.Is(err, ledger.ErrStaleDay) {
		// A frame from before midnight processed after another camera moved
		// the ledger on. The unique constraint still keeps the day at one mark.
		o.lateMarks.Add(1)
		log.Warning("Frame from %s is older than the ledger day, recording the mark directly: %v", at.Format(time.RFC3339), err)
		o.recordMark(log, user, model.NewAttendanceMark(result.Identity, cam, result.Confidence, at, o.deps.Ledger.DayKey(at)))
		return
	}
	if err != nil {
		log.Error("Failed to mark attendance: %v", err)
		return
	}
	if outcome.Outcome == ledger.AlreadyMarked {
		return
	}
	o.recordMark(log, user, outcome.Mark)
}

// recordMark persists a fresh mark and sends its notifications.
func (o *Orchestrator) recordMark(log *logger.Logger, user *model.User, mark model.AttendanceMark) {
	ctx := o.ctx
	mark.UserID = user.ID

	err := o.deps.Gateway.RecordAttendance(ctx, &mark)
	if errors.Is(err, repository.ErrDuplicateMark) {
		// Another process sharing the database marked first.
		log.Info("%s already has a stored mark on %s", mark.Identity, mark.DayKey)
		return
	}
	o.marked.Add(1)
	if err != nil {
		o.divergences.Add(1)
		log.Critical("%v: mark %s for %s on %s is not persisted: %v",
			ledger.ErrDivergence, mark.ID, mark.Identity, mark.DayKey, err)
	} else {
		log.Info("Attendance marked for %s (confidence %.2f)", mark.Identity, mark.Confidence)
		o.refreshAnalytics(mark.DayKey)
	}

	if notify.ValidEmail(user.Email) {
		o.deps.Notifier.Enqueue(notify.AttendanceConfirmation(*user, mark))
	} else {
		log.Warning("Invalid or missing email for user %s: %q", user.Name, user.Email)
	}
	if notify.ValidEmail(o.deps.AdminEmail) {
		o.deps.Notifier.Enqueue(notify.AttendanceAlert(o.deps.AdminEmail, mark))
	}
}

func (o *Orchestrator) handleUnauthorized(frame model.Frame, result model.RecognitionResult, at time.Time) {
	event, err := o.deps.Unauthorized.Record(o.ctx, frame.Camera, result.Confidence, frame.Image, at)
	if err != nil {
		o.logger.Error("%v", err)
	} else {
		o.unauthorized.Add(1)
		o.refreshAnalytics(event.DayKey)
	}

	if !notify.ValidEmail(o.deps.AdminEmail) {
		return
	}
	if o.deps.Pacer != nil && !o.deps.Pacer.Allow(at) {
		o.logger.Debug("Unauthorized alert for camera %d paced out", frame.Camera)
		return
	}

	var snapshot []byte
	if event.ImageReference != "" {
		snapshot = frame.Image
	}
	o.deps.Notifier.Enqueue(notify.UnauthorizedAlert(o.deps.AdminEmail, event, snapshot))
}

func (o *Orchestrator) refreshAnalytics(dayKey string) {
	if o.deps.Gateway.Analytics == nil {
		return
	}
	if _, err := o.deps.Gateway.Analytics.Refresh(o.ctx, dayKey); err != nil {
		o.logger.Warning("Failed to refresh analytics for %s: %v", dayKey, err)
	}
}

func (o *Orchestrator) publish(frame model.Frame, results []model.RecognitionResult) {
	if o.deps.Viewers == nil || o.deps.Viewers.ClientCount() == 0 {
		return
	}

	img := frame.Image
	if o.deps.Annotator != nil && len(results) > 0 {
		annotated, err := o.deps.Annotator.Annotate(frame.Image, results)
		if err != nil {
			o.logger.Warning("Failed to annotate frame from camera %d: %v", frame.Camera, err)
		} else {
			img = annotated
		}
	}
	o.deps.Viewers.Broadcast(live.NewFrameMessage(frame, img, results))
}
