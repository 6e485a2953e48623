// Package capture produces frames for the detection pipeline.
package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
)

var ErrUnknownSource = errors.New("unknown capture source")

// Source emits frames at its own cadence until ctx is done. emit takes
// ownership of every frame it is given.
type Source interface {
	Run(ctx context.Context, emit func(*pipeline.Frame)) error
}

func New(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Source {
	case config.CaptureCamera:
		return NewCamera(cfg), nil
	case config.CaptureFile:
		return NewFile(cfg), nil
	case config.CaptureImages:
		return NewImages(cfg), nil
	}
	return nil, ErrUnknownSource
}

// Feed runs src into slot until ctx is done.
func Feed(ctx context.Context, src Source, slot *pipeline.Slot) error {
	err := src.Run(ctx, slot.Put)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	stats := slot.Stats()
	logrus.Infof("capture stopped, %d frames, %d dropped", stats.Puts, stats.Drops)
	return err
}

type sequence struct {
	n atomic.Uint64
}

func (s *sequence) next() uint64 {
	return s.n.Add(1)
}

func interval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Duration(float64(time.Second) / fps)
}
