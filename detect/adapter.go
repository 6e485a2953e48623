package detect

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
	"github.com/yixinin/camsight/stderr"
)

// Adapter implements pipeline.Detector on top of an Engine.
type Adapter struct {
	engine    Engine
	inputName string
	width     int
	height    int
	threshold float32
}

func NewAdapter(engine Engine, cfg config.DetectorConfig) *Adapter {
	a := &Adapter{
		engine:    engine,
		inputName: cfg.InputName,
		width:     cfg.InputWidth,
		height:    cfg.InputHeight,
		threshold: cfg.ScoreThreshold,
	}
	if a.inputName == "" {
		a.inputName = "input"
	}
	if a.width <= 0 || a.height <= 0 {
		a.width, a.height = 320, 240
	}
	if a.threshold <= 0 {
		a.threshold = 0.4
	}
	return a
}

func (a *Adapter) Detect(ctx context.Context, f *pipeline.Frame) (pipeline.Inference, error) {
	if f == nil || f.Image == nil {
		return pipeline.Inference{Detections: []pipeline.Detection{}}, nil
	}
	input, geo := Letterbox(f.Image, a.width, a.height)
	outputs, err := a.engine.Run(ctx, map[string]Tensor{a.inputName: input})
	if err != nil {
		return pipeline.Inference{Geometry: geo}, stderr.Wrap(err)
	}
	dets := Normalize(outputs, a.threshold)
	if len(dets) == 0 && len(outputs) > 0 {
		logrus.WithField("frame", f.ID).Debugf("no detections in %d outputs", len(outputs))
	}
	return pipeline.Inference{Detections: dets, Geometry: geo}, nil
}
