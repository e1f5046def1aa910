package capture

import (
	"context"
	"time"
)

// Frame is one still image taken from the camera stream.
type Frame struct {
	Data        []byte
	ContentType string
	Seq         uint64
	CapturedAt  time.Time
}

// Recognizer is the external text recognition capability (OCR).
type Recognizer interface {
	Recognize(ctx context.Context, f Frame) (string, error)
}

// FrameSource hands out the newest camera frame. Close releases the
// underlying camera and must be safe to call more than once.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}
