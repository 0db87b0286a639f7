package model

import (
	"image"
	"time"
)

// CameraID identifies a configured camera.
type CameraID int

// Frame is one captured image. Image holds JPEG bytes and must not be
// modified after capture.
type Frame struct {
	Camera     CameraID
	Image      []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// DetectedRegion is a face bounding box and its cropped JPEG. It lives only
// for the duration of one recognition call.
type DetectedRegion struct {
	Box     image.Rectangle
	Cropped []byte
}
