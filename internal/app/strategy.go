package app

import (
	"errors"
	"fmt"

	"attendance/internal/config"
	"attendance/internal/logger"
	"attendance/internal/recognition"
	"attendance/internal/recognition/gallery"
	"attendance/internal/recognition/vision"
)

// Strategy hands out one detector/classifier pair per camera. OpenCV objects
// are not shared between cameras; the gallery index is.
type Strategy struct {
	name    string
	cfg     *config.Config
	index   *gallery.Index
	closers []func() error
}

// NewStrategy loads the gallery with the extractor of the configured
// strategy.
func NewStrategy(cfg *config.Config, log *logger.Logger) (*Strategy, error) {
	s := &Strategy{name: cfg.RecognitionStrategy, cfg: cfg}

	extractor, err := s.newExtractor()
	if err != nil {
		return nil, err
	}
	index, err := gallery.Load(cfg.GalleryDirectory, extractor, log)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.index = index

	log.Info("🤖 Recognition strategy %s, threshold %.2f", s.name, cfg.RecognitionThreshold)
	return s, nil
}

// ForCamera builds a fresh detector and classifier.
func (s *Strategy) ForCamera() (recognition.FaceDetector, recognition.Classifier, error) {
	var detector recognition.FaceDetector
	switch s.name {
	case "haar":
		d, err := vision.NewHaarDetector(s.cfg.CascadePath)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, d.Close)
		detector = d
	case "dnn":
		d, err := vision.NewSSDDetector(s.cfg.DetectorModelPath, s.cfg.DetectorConfigPath)
		if err != nil {
			return nil, nil, err
		}
		s.closers = append(s.closers, d.Close)
		detector = d
	default:
		return nil, nil, fmt.Errorf("unknown recognition strategy %q", s.name)
	}

	extractor, err := s.newExtractor()
	if err != nil {
		return nil, nil, err
	}
	return detector, gallery.NewClassifier(s.index, extractor), nil
}

// Cropper returns the region cropper shared by both strategies.
func (s *Strategy) Cropper() recognition.Cropper {
	return vision.Cropper{}
}

// Close releases every OpenCV object handed out.
func (s *Strategy) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Strategy) newExtractor() (gallery.Extractor, error) {
	switch s.name {
	case "haar":
		return vision.PixelExtractor{}, nil
	case "dnn":
		e, err := vision.NewEmbeddingExtractor(s.cfg.EmbedderModelPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, e.Close)
		return e, nil
	default:
		return nil, fmt.Errorf("unknown recognition strategy %q", s.name)
	}
}
