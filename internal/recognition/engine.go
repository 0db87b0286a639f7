// Package recognition turns frames into per-face recognition results.
//
// Detection and classification are capabilities injected into an Engine; the
// Engine owns the accept/reject boundary so every strategy is judged by the
// same configured threshold.
package recognition

import (
	"errors"
	"fmt"
	"image"
	"math"

	"attendance/internal/model"
)

// ErrMalformedResult is returned when a capability produces output that
// cannot be trusted, such as a confidence outside [0,1].
var ErrMalformedResult = errors.New("malformed recognition result")

// FaceDetector finds face bounding boxes in a JPEG image.
type FaceDetector interface {
	Detect(img []byte) ([]image.Rectangle, error)
}

// Cropper cuts a region out of a JPEG image and returns it JPEG encoded.
type Cropper interface {
	Crop(img []byte, box image.Rectangle) ([]byte, error)
}

// Classifier names the person in a cropped face. An empty identity means no
// match; a confidence is returned either way.
type Classifier interface {
	Classify(cropped []byte) (identity string, confidence float64, err error)
}

// Engine wraps a detector/classifier pair with thresholding. It keeps no
// state between calls.
type Engine struct {
	detector   FaceDetector
	cropper    Cropper
	classifier Classifier
	threshold  float64
}

// NewEngine creates an Engine. Results with confidence >= threshold and a
// non-empty identity are accepted.
func NewEngine(detector FaceDetector, cropper Cropper, classifier Classifier, threshold float64) *Engine {
	return &Engine{
		detector:   detector,
		cropper:    cropper,
		classifier: classifier,
		threshold:  threshold,
	}
}

// Threshold returns the configured acceptance threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Detect returns the face regions of a frame. No faces is not an error.
func (e *Engine) Detect(frame model.Frame) ([]model.DetectedRegion, error) {
	boxes, err := e.detector.Detect(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	regions := make([]model.DetectedRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Empty() {
			return nil, fmt.Errorf("%w: empty bounding box %v", ErrMalformedResult, box)
		}
		cropped, err := e.cropper.Crop(frame.Image, box)
		if err != nil {
			return nil, fmt.Errorf("failed to crop region %v: %w", box, err)
		}
		regions = append(regions, model.DetectedRegion{Box: box, Cropped: cropped})
	}
	return regions, nil
}

// Classify names one region and applies the threshold.
func (e *Engine) Classify(region model.DetectedRegion) (model.RecognitionResult, error) {
	identity, confidence, err := e.classifier.Classify(region.Cropped)
	if err != nil {
		return model.RecognitionResult{}, fmt.Errorf("classification failed: %w", err)
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return model.RecognitionResult{}, fmt.Errorf("%w: confidence %v", ErrMalformedResult, confidence)
	}

	return model.RecognitionResult{
		Box:        region.Box,
		Identity:   identity,
		Confidence: confidence,
		Accepted:   e.Accepts(identity, confidence),
	}, nil
}

// Recognize runs Detect then Classify on every region. Any failure aborts the
// rest of the frame.
func (e *Engine) Recognize(frame model.Frame) ([]model.RecognitionResult, error) {
	regions, err := e.Detect(frame)
	if err != nil {
		return nil, err
	}

	results := make([]model.RecognitionResult, 0, len(regions))
	for _, region := range regions {
		result, err := e.Classify(region)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Accepts reports whether a raw classifier output passes the threshold. The
// boundary is inclusive.
func (e *Engine) Accepts(identity string, confidence float64) bool {
	return identity != "" && confidence >= e.threshold
}
