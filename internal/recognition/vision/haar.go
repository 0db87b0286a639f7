// Package vision holds the OpenCV implementations of the recognition
// capabilities: face detectors, region cropping and feature extractors.
package vision

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// HaarScaleFactor is the image pyramid step for cascade detection.
	HaarScaleFactor = 1.3
	// HaarMinNeighbors is the number of overlapping hits a face needs.
	HaarMinNeighbors = 5
	// HaarMinSize is the smallest face considered, in pixels.
	HaarMinSize = 30
)

// HaarDetector finds frontal faces with a Haar cascade.
type HaarDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewHaarDetector loads the cascade XML at path.
func NewHaarDetector(path string) (*HaarDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load face cascade classifier from %s", path)
	}
	return &HaarDetector{classifier: classifier}, nil
}

// Detect implements recognition.FaceDetector.
func (d *HaarDetector) Detect(img []byte) ([]image.Rectangle, error) {
	mat, err := decode(img, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert image to grayscale: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	faces := d.classifier.DetectMultiScaleWithParams(
		gray,
		HaarScaleFactor,
		HaarMinNeighbors,
		0,
		image.Pt(HaarMinSize, HaarMinSize),
		image.Pt(0, 0),
	)
	return faces, nil
}

// Close releases the cascade.
func (d *HaarDetector) Close() error {
	return d.classifier.Close()
}

func decode(img []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(img, flags)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return mat, fmt.Errorf("decoded image is empty")
	}
	return mat, nil
}

func encode(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
