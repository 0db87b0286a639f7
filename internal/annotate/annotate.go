// Package annotate draws recognition results onto JPEG frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"attendance/internal/model"
)

var (
	green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	red   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Drawer labels accepted faces in green and unknown ones in red.
type Drawer struct{}

// Annotate returns a copy of img with a box and "label (confidence)" banner
// per result.
func (Drawer) Annotate(img []byte, results []model.RecognitionResult) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	for _, r := range results {
		c := red
		if r.Accepted {
			c = green
		}

		if err := gocv.Rectangle(&mat, r.Box, c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		banner := image.Rect(r.Box.Min.X, r.Box.Min.Y-30, r.Box.Max.X, r.Box.Min.Y)
		if err := gocv.Rectangle(&mat, banner, c, -1); err != nil {
			return nil, fmt.Errorf("failed to draw banner: %w", err)
		}

		label := fmt.Sprintf("%s (%.2f)", r.Label(), r.Confidence)
		pt := image.Pt(r.Box.Min.X+5, r.Box.Min.Y-8)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.6, white, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
