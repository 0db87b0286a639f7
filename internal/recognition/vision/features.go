package vision

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Cropper cuts face regions out of JPEG frames.
type Cropper struct{}

// Crop implements recognition.Cropper. The box is clipped to the image.
func (Cropper) Crop(img []byte, box image.Rectangle) ([]byte, error) {
	mat, err := decode(img, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	box = box.Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if box.Empty() {
		return nil, fmt.Errorf("region %v lies outside the image", box)
	}

	region := mat.Region(box)
	defer region.Close()
	return encode(region)
}

// PixelSize is the side of the square a face is resized to before its
// pixels are used as a feature vector.
const PixelSize = 50

// PixelExtractor uses the equalised grayscale pixels of a resized face as
// its feature vector, mean-centred and L2 normalised.
type PixelExtractor struct{}

// Extract implements gallery.Extractor.
func (PixelExtractor) Extract(img []byte) ([]float32, error) {
	mat, err := decode(img, gocv.IMReadGrayScale)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(mat, &resized, image.Pt(PixelSize, PixelSize), 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("failed to resize face: %w", err)
	}

	equalized := gocv.NewMat()
	defer equalized.Close()
	if err := gocv.EqualizeHist(resized, &equalized); err != nil {
		return nil, fmt.Errorf("failed to equalize face: %w", err)
	}

	vec := make([]float32, 0, PixelSize*PixelSize)
	for y := 0; y < PixelSize; y++ {
		for x := 0; x < PixelSize; x++ {
			vec = append(vec, float32(equalized.GetUCharAt(y, x))/255)
		}
	}
	return normalize(vec), nil
}

// EmbeddingExtractor computes a 128-d face embedding with an OpenFace
// Torch network.
type EmbeddingExtractor struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewEmbeddingExtractor loads the OpenFace model at path.
func NewEmbeddingExtractor(path string) (*EmbeddingExtractor, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("embedding model not found: %s", path)
	}
	net := gocv.ReadNetFromTorch(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load embedding network")
	}
	return &EmbeddingExtractor{net: net}, nil
}

// Extract implements gallery.Extractor.
func (e *EmbeddingExtractor) Extract(img []byte) ([]float32, error) {
	mat, err := decode(img, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255, image.Pt(96, 96), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	e.mu.Unlock()
	defer output.Close()

	vec := make([]float32, output.Total())
	for i := range vec {
		vec[i] = output.GetFloatAt(0, i)
	}
	return normalize(vec), nil
}

// Close releases the network.
func (e *EmbeddingExtractor) Close() error {
	return e.net.Close()
}

func normalize(vec []float32) []float32 {
	var mean float64
	for _, v := range vec {
		mean += float64(v)
	}
	mean /= float64(len(vec))

	var norm float64
	for i, v := range vec {
		c := float64(v) - mean
		vec[i] = float32(c)
		norm += c * c
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
