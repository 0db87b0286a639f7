// Package gallery classifies faces by nearest neighbour over a labelled set of
// enrolled feature vectors.
package gallery

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

const maxNeighbors = 16

// Index is an HNSW graph of labelled feature vectors searched by cosine
// distance.
type Index struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	labels []string
	dim    int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	g := hnsw.NewGraph[int]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance
	return &Index{graph: g}
}

// Add stores one labelled sample. All samples must share a dimension.
func (i *Index) Add(label string, vec []float32) error {
	if label == "" {
		return errors.New("sample label is empty")
	}
	if len(vec) == 0 {
		return errors.New("sample vector is empty")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dim == 0 {
		i.dim = len(vec)
	} else if len(vec) != i.dim {
		return fmt.Errorf("sample dimension %d does not match index dimension %d", len(vec), i.dim)
	}

	key := len(i.labels)
	i.labels = append(i.labels, label)
	i.graph.Add(hnsw.MakeNode(key, vec))
	return nil
}

// Len returns the number of samples.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.labels)
}

// Labels returns the distinct enrolled labels.
func (i *Index) Labels() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, l := range i.labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Nearest returns the label of the closest sample and its cosine distance.
// ok is false when the index is empty.
func (i *Index) Nearest(vec []float32) (label string, distance float64, ok bool, err error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.labels) == 0 {
		return "", 0, false, nil
	}
	if len(vec) != i.dim {
		return "", 0, false, fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), i.dim)
	}

	neighbors := i.graph.Search(vec, 1)
	if len(neighbors) == 0 {
		return "", 0, false, nil
	}
	n := neighbors[0]
	return i.labels[n.Key], CosineDistance(vec, n.Value), true, nil
}

// CosineDistance returns 1 - cosine similarity, in [0, 2].
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
