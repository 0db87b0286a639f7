package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"attendance/internal/annotate"
	"attendance/internal/capture"
	"attendance/internal/capture/webcam"
	"attendance/internal/config"
	"attendance/internal/handler"
	"attendance/internal/ledger"
	"attendance/internal/logger"
	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/notify"
	"attendance/internal/orchestrator"
	"attendance/internal/recognition"
	"attendance/internal/repository"
	"attendance/internal/service/live"
	"attendance/internal/unauthorized"
)

// App is the attendance service: orchestrator plus the live viewer server.
type App struct {
	config       *config.Config
	logger       *logger.Logger
	location     *time.Location
	gateway      *repository.Gateway
	hub          *live.Hub
	orchestrator *orchestrator.Orchestrator
	server       *http.Server
	closers      []func() error
}

// NewApp builds every collaborator from cfg. Nothing is started.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log, location: loc}
	ok := false
	defer func() {
		if !ok {
			a.closeAll()
			// On success the orchestrator owns the gateway and closes it on Stop.
			if a.gateway != nil {
				a.gateway.Close()
			}
		}
	}()

	a.gateway, err = openGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ledgerOpts, closeLedger, err := ledgerOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeLedger != nil {
		a.closers = append(a.closers, closeLedger)
	}

	snapshots, err := NewSnapshotStore(cfg, log)
	if err != nil {
		return nil, err
	}

	var mailer notify.Gateway
	if cfg.SMTPMail != "" {
		mailer, err = notify.NewSMTPGateway(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warning("SMTP_MAIL not set, notifications are logged only")
		mailer = logGateway{logger: log}
	}

	pipelines, err := a.buildPipelines(cfg, log)
	if err != nil {
		return nil, err
	}

	a.hub = live.NewHub(log)

	var pacer notify.Pacer
	if p := notify.NewRatePacer(cfg.UnauthorizedAlertRate); p != nil {
		pacer = p
	}

	a.orchestrator, err = orchestrator.New(orchestrator.Deps{
		Pipelines:    pipelines,
		Ledger:       ledger.New(loc, ledgerOpts...),
		Gateway:      a.gateway,
		Unauthorized: unauthorized.NewLog(snapshots, a.gateway, loc, log),
		Notifier:     notify.NewNotifier(mailer, cfg.NotifyQueueSize, log),
		Logger:       log,
		Annotator:    annotate.Drawer{},
		Viewers:      a.hub,
		Pacer:        pacer,
		AdminEmail:   cfg.AdminEmail,
		Idle:         cfg.ProcessIdle,
	})
	if err != nil {
		return nil, err
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ok = true
	return a, nil
}

// Run starts the system and blocks until ctx is cancelled, then stops
// everything cooperatively.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run()

	if err := a.orchestrator.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("🚀 Attendance server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case runErr = <-serverErr:
		a.logger.Error("HTTP server failed: %v", runErr)
	}

	if err := a.shutdown(); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.orchestrator.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.hub.Stop()
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildPipelines(cfg *config.Config, log *logger.Logger) ([]orchestrator.Pipeline, error) {
	rotate, err := webcam.Rotation(cfg.CameraRotation)
	if err != nil {
		return nil, err
	}

	strategy, err := NewStrategy(cfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, strategy.Close)

	pipelines := make([]orchestrator.Pipeline, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		detector, classifier, err := strategy.ForCamera()
		if err != nil {
			return nil, fmt.Errorf("camera %d: %w", cam.ID, err)
		}

		opts := []capture.Option{
			capture.WithQueueSize(cfg.FrameQueueSize),
			capture.WithBackoff(cfg.CaptureBackoff),
			capture.WithLogger(log),
		}
		if rotate != nil {
			opts = append(opts, capture.WithTransform(rotate))
		}

		source := capture.NewSource(model.CameraID(cam.ID), capture.Settings{
			Source: cam.Source,
			Width:  cfg.CameraWidth,
			Height: cfg.CameraHeight,
			FPS:    cfg.CameraFPS,
		}, webcam.Open, opts...)

		pipelines = append(pipelines, orchestrator.Pipeline{
			Source: source,
			Engine: recognition.NewEngine(detector, strategy.Cropper(), classifier, cfg.RecognitionThreshold),
		})
	}
	return pipelines, nil
}

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/view", live.ViewHandler(a.hub, a.logger))
	mux.HandleFunc("/api/stats", live.JSONHandler(func(*http.Request) (any, error) {
		return a.orchestrator.Stats(), nil
	}, a.logger))
	mux.HandleFunc("/api/attendance/today", live.JSONHandler(func(r *http.Request) (any, error) {
		return a.gateway.Attendance.ListForDay(r.Context(), model.DayKey(time.Now(), a.location))
	}, a.logger))
	mux.HandleFunc("/api/analytics/today", live.JSONHandler(func(r *http.Request) (any, error) {
		analytics, err := a.gateway.Analytics.Get(r.Context(), model.DayKey(time.Now(), a.location))
		if errors.Is(err, repository.ErrNotFound) {
			return model.DailyAnalytics{DayKey: model.DayKey(time.Now(), a.location)}, nil
		}
		return analytics, err
	}, a.logger))
	mux.HandleFunc("/api/logs", handler.LogsHandler(a.config.LogDirectory))
	mux.HandleFunc("/login", handler.LoginHandler(a.config.AdminPassword, a.logger))
	mux.HandleFunc("/logout", handler.LogoutHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return middleware.AuthMiddleware(a.config.AdminPassword, mux)
}

// logGateway stands in for SMTP when no sender is configured.
type logGateway struct {
	logger *logger.Logger
}

func (g logGateway) Notify(_ context.Context, msg notify.Message) error {
	g.logger.Info("Notification to %s: %s", msg.Recipient, msg.Subject)
	return nil
}
