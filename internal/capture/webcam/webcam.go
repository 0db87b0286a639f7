// Package webcam opens local cameras and network streams through OpenCV.
package webcam

import (
	"errors"
	"fmt"

	"attendance/internal/capture"

	"gocv.io/x/gocv"
)

// Device reads frames from a gocv VideoCapture and returns them JPEG encoded.
type Device struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// Open implements capture.Opener. Source may be a device index or a URL.
func Open(settings capture.Settings) (capture.Device, error) {
	vc, err := gocv.OpenVideoCapture(settings.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture %s: %w", settings.Source, err)
	}

	vc.Set(gocv.VideoCaptureBufferSize, 1)
	if settings.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(settings.Width))
	}
	if settings.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(settings.Height))
	}
	if settings.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(settings.FPS))
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture %s is not opened", settings.Source)
	}

	return &Device{capture: vc, mat: gocv.NewMat()}, nil
}

// Read grabs one frame. It fails on an unreadable or empty frame.
func (d *Device) Read() (capture.Image, error) {
	if ok := d.capture.Read(&d.mat); !ok {
		return capture.Image{}, errors.New("failed to read frame")
	}
	if d.mat.Empty() {
		return capture.Image{}, errors.New("received empty frame")
	}
	data, err := encodeJPEG(d.mat)
	if err != nil {
		return capture.Image{}, err
	}
	return capture.Image{Data: data, Width: d.mat.Cols(), Height: d.mat.Rows()}, nil
}

// Close releases the capture device.
func (d *Device) Close() error {
	if err := d.mat.Close(); err != nil {
		d.capture.Close()
		return err
	}
	return d.capture.Close()
}

// Rotation returns a transform that rotates frames clockwise by degrees
// (90, 180 or 270). Zero returns nil.
func Rotation(degrees int) (capture.Transform, error) {
	var flag gocv.RotateFlag
	switch degrees {
	case 0:
		return nil, nil
	case 90:
		flag = gocv.Rotate90Clockwise
	case 180:
		flag = gocv.Rotate180Clockwise
	case 270:
		flag = gocv.Rotate90CounterClockwise
	default:
		return nil, fmt.Errorf("unsupported rotation %d", degrees)
	}

	return func(img capture.Image) (capture.Image, error) {
		src, err := gocv.IMDecode(img.Data, gocv.IMReadColor)
		if err != nil {
			return img, fmt.Errorf("failed to decode image: %w", err)
		}
		defer src.Close()

		dst := gocv.NewMat()
		defer dst.Close()
		if err := gocv.Rotate(src, &dst, flag); err != nil {
			return img, fmt.Errorf("failed to rotate image: %w", err)
		}

		data, err := encodeJPEG(dst)
		if err != nil {
			return img, err
		}
		return capture.Image{Data: data, Width: dst.Cols(), Height: dst.Rows()}, nil
	}, nil
}

func encodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
