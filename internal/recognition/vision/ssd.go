package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// SSDConfidence is the minimum detector score for a face box.
const SSDConfidence = 0.5

// SSDDetector finds faces with the OpenCV res10 SSD network.
type SSDDetector struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewSSDDetector loads the Caffe model and prototxt.
func NewSSDDetector(modelPath, configPath string) (*SSDDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}
	return &SSDDetector{net: net}, nil
}

// Detect implements recognition.FaceDetector.
func (d *SSDDetector) Detect(img []byte) ([]image.Rectangle, error) {
	mat, err := decode(img, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(300, 300), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	// rows of [batch_id, class_id, confidence, x1, y1, x2, y2], normalised
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	var faces []image.Rectangle
	for i := 0; i < rows.Rows(); i++ {
		if rows.GetFloatAt(i, 2) < SSDConfidence {
			continue
		}
		box := image.Rect(
			int(rows.GetFloatAt(i, 3)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 4)*float32(mat.Rows())),
			int(rows.GetFloatAt(i, 5)*float32(mat.Cols())),
			int(rows.GetFloatAt(i, 6)*float32(mat.Rows())),
		).Intersect(bounds)
		if !box.Empty() {
			faces = append(faces, box)
		}
	}
	return faces, nil
}

// Close releases the network.
func (d *SSDDetector) Close() error {
	return d.net.Close()
}
