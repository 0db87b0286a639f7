package gallery

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"attendance/internal/logger"
)

// Extractor turns a cropped face into a feature vector.
type Extractor interface {
	Extract(img []byte) ([]float32, error)
}

// Classifier labels a face with its nearest enrolled sample.
type Classifier struct {
	index     *Index
	extractor Extractor
}

// NewClassifier creates a Classifier over index. The extractor is called per
// face and must be safe for the caller's concurrency.
func NewClassifier(index *Index, extractor Extractor) *Classifier {
	return &Classifier{index: index, extractor: extractor}
}

// Classify implements recognition.Classifier. With an empty gallery it
// returns no identity and zero confidence.
func (c *Classifier) Classify(cropped []byte) (string, float64, error) {
	if c.index.Len() == 0 {
		return "", 0, nil
	}

	vec, err := c.extractor.Extract(cropped)
	if err != nil {
		return "", 0, fmt.Errorf("failed to extract features: %w", err)
	}

	label, distance, ok, err := c.index.Nearest(vec)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", 0, nil
	}
	return label, Confidence(distance), nil
}

// Confidence maps a cosine distance to (0, 1]. For unit vectors the euclidean
// distance is sqrt(2*d), and confidence is 1/(1+euclidean).
func Confidence(cosineDistance float64) float64 {
	if cosineDistance < 0 {
		cosineDistance = 0
	}
	return 1.0 / (1.0 + math.Sqrt(2*cosineDistance))
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Load enrolls every image under dir/<identity>/ into a new index. Images that
// fail extraction are logged and skipped. A missing directory yields an empty
// index.
func Load(dir string, extractor Extractor, log *logger.Logger) (*Index, error) {
	index := NewIndex()

	identities, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		log.Warning("Gallery directory %s not found, every face will be unknown", dir)
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery directory: %w", err)
	}

	for _, identity := range identities {
		if !identity.IsDir() {
			continue
		}
		personDir := filepath.Join(dir, identity.Name())
		files, err := os.ReadDir(personDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", personDir, err)
		}

		for _, file := range files {
			if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
				continue
			}
			path := filepath.Join(personDir, file.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warning("Skipping gallery image %s: %v", path, err)
				continue
			}
			vec, err := extractor.Extract(data)
			if err != nil {
				log.Warning("Skipping gallery image %s: %v", path, err)
				continue
			}
			if err := index.Add(identity.Name(), vec); err != nil {
				log.Warning("Skipping gallery image %s: %v", path, err)
			}
		}
	}

	log.Info("🧑 Gallery loaded: %d samples, %d identities", index.Len(), len(index.Labels()))
	return index, nil
}
