package gallery

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"attendance/internal/logger"
)

// byteExtractor maps the first byte of an image to a fixed vector.
type byteExtractor map[byte][]float32

func (e byteExtractor) Extract(img []byte) ([]float32, error) {
	if len(img) == 0 {
		return nil, errors.New("empty image")
	}
	vec, ok := e[img[0]]
	if !ok {
		return nil, errors.New("unknown image")
	}
	return vec, nil
}

func TestIndex_NearestLabel(t *testing.T) {
	index := NewIndex()
	mustAdd(t, index, "Alice", []float32{1, 0, 0})
	mustAdd(t, index, "Alice", []float32{0.9, 0.1, 0})
	mustAdd(t, index, "Bob", []float32{0, 1, 0})

	label, distance, ok, err := index.Nearest([]float32{0, 0.95, 0.05})
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if !ok || label != "Bob" {
		t.Fatalf("expected Bob, got %q (ok=%v)", label, ok)
	}
	if distance > 0.01 {
		t.Errorf("expected a small distance, got %f", distance)
	}
}

func TestIndex_RejectsDimensionMismatch(t *testing.T) {
	index := NewIndex()
	mustAdd(t, index, "Alice", []float32{1, 0})

	if err := index.Add("Bob", []float32{1, 0, 0}); err == nil {
		t.Error("expected dimension error on Add")
	}
	if _, _, _, err := index.Nearest([]float32{1}); err == nil {
		t.Error("expected dimension error on Nearest")
	}
}

func TestIndex_EmptyHasNoNeighbour(t *testing.T) {
	_, _, ok, err := NewIndex().Nearest([]float32{1, 0})
	if err != nil || ok {
		t.Errorf("expected no neighbour and no error, got ok=%v err=%v", ok, err)
	}
}

func TestConfidence(t *testing.T) {
	if got := Confidence(0); got != 1 {
		t.Errorf("identical vectors should have confidence 1, got %f", got)
	}
	if got := Confidence(2); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("opposite vectors should have confidence 1/3, got %f", got)
	}
	if Confidence(0.1) <= Confidence(0.5) {
		t.Error("confidence should decrease with distance")
	}
}

func TestClassifier_EmptyGalleryReturnsUnknown(t *testing.T) {
	c := NewClassifier(NewIndex(), byteExtractor{})

	identity, confidence, err := c.Classify([]byte{1})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if identity != "" || confidence != 0 {
		t.Errorf("expected unknown with zero confidence, got %q %f", identity, confidence)
	}
}

func TestClassifier_ExtractorFailure(t *testing.T) {
	index := NewIndex()
	mustAdd(t, index, "Alice", []float32{1, 0})
	c := NewClassifier(index, byteExtractor{})

	if _, _, err := c.Classify([]byte{9}); err == nil {
		t.Error("expected extraction error")
	}
}

func TestLoad_EnrollsPerIdentityDirectory(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "Alice", "1.jpg"), 1)
	writeImage(t, filepath.Join(dir, "Alice", "2.JPG"), 2)
	writeImage(t, filepath.Join(dir, "Bob", "1.png"), 3)
	writeImage(t, filepath.Join(dir, "Bob", "notes.txt"), 3)
	writeImage(t, filepath.Join(dir, "Bob", "broken.jpg"), 99)

	extractor := byteExtractor{
		1: {1, 0, 0},
		2: {0.95, 0.05, 0},
		3: {0, 0, 1},
	}

	index, err := Load(dir, extractor, logger.Discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if index.Len() != 3 {
		t.Errorf("expected 3 samples, got %d", index.Len())
	}

	c := NewClassifier(index, byteExtractor{7: {0.01, 0, 1}})
	identity, confidence, err := c.Classify([]byte{7})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if identity != "Bob" {
		t.Errorf("expected Bob, got %q", identity)
	}
	if confidence < 0.9 {
		t.Errorf("expected high confidence, got %f", confidence)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	index, err := Load(filepath.Join(t.TempDir(), "missing"), byteExtractor{}, logger.Discard())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if index.Len() != 0 {
		t.Errorf("expected empty index, got %d", index.Len())
	}
}

func mustAdd(t *testing.T, index *Index, label string, vec []float32) {
	t.Helper()
	if err := index.Add(label, vec); err != nil {
		t.Fatalf("Add(%s) failed: %v", label, err)
	}
}

func writeImage(t *testing.T, path string, first byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte{first, 0xFF}, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
