package capture

import (
	"sync/atomic"

	"attendance/internal/model"
)

// DefaultQueueSize is the per-camera frame queue capacity.
const DefaultQueueSize = 2

// FrameQueue is a bounded, non-blocking frame buffer. When full, the incoming
// frame is dropped and the queued frames are left untouched.
type FrameQueue struct {
	frames  chan model.Frame
	dropped atomic.Uint64
}

// NewFrameQueue creates a queue holding at most size frames.
func NewFrameQueue(size int) *FrameQueue {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &FrameQueue{frames: make(chan model.Frame, size)}
}

// Push offers a frame without blocking. It reports false if the frame was
// dropped because the queue is full.
func (q *FrameQueue) Push(frame model.Frame) bool {
	select {
	case q.frames <- frame:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// TryPop returns the oldest queued frame, or false if the queue is empty.
func (q *FrameQueue) TryPop() (model.Frame, bool) {
	select {
	case frame := <-q.frames:
		return frame, true
	default:
		return model.Frame{}, false
	}
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	return len(q.frames)
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return cap(q.frames)
}

// Dropped returns how many frames were rejected because the queue was full.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}
