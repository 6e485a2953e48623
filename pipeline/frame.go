package pipeline

import (
	"context"
	"image"
	"sync"
	"time"
)

// Frame is one captured image. Whoever holds a Frame owns it and must
// eventually call Release.
type Frame struct {
	Image     image.Image
	ID        uint64
	CaptureTs time.Time

	once    sync.Once
	release func()
}

// NewFrame wraps img. release, if not nil, runs exactly once on Release.
func NewFrame(img image.Image, id uint64, captureTs time.Time, release func()) *Frame {
	return &Frame{
		Image:     img,
		ID:        id,
		CaptureTs: captureTs,
		release:   release,
	}
}

func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.Image = nil
	})
}

type Box struct {
	XMin float32 `json:"xmin"`
	YMin float32 `json:"ymin"`
	XMax float32 `json:"xmax"`
	YMax float32 `json:"ymax"`
}

// Detection is in model input coordinates. It is only meaningful together
// with the frame it came from.
type Detection struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
	Box   Box     `json:"box"`
}

// Geometry describes how a frame was letterboxed into the model input.
type Geometry struct {
	InputWidth  int     `json:"inputWidth"`
	InputHeight int     `json:"inputHeight"`
	Scale       float64 `json:"scale"`
	PadX        int     `json:"padX"`
	PadY        int     `json:"padY"`
}

type Inference struct {
	Detections []Detection
	Geometry   Geometry
}

// Detector runs one frame through the inference engine. It does not take
// ownership of the frame.
type Detector interface {
	Detect(ctx context.Context, f *Frame) (Inference, error)
}

type DetectorFunc func(ctx context.Context, f *Frame) (Inference, error)

func (fn DetectorFunc) Detect(ctx context.Context, f *Frame) (Inference, error) {
	return fn(ctx, f)
}
