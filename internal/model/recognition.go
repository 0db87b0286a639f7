package model

import "image"

// RecognitionResult is the classification outcome for one detected region.
// Identity is empty when the classifier declined to name anyone.
type RecognitionResult struct {
	Box        image.Rectangle
	Identity   string
	Confidence float64
	Accepted   bool
}

// Label returns the text drawn next to the region on annotated frames.
func (r RecognitionResult) Label() string {
	if !r.Accepted || r.Identity == "" {
		return "Unknown"
	}
	return r.Identity
}
