package detect

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
)

func TestAdapterDetect(t *testing.T) {
	is := is.New(t)
	var got map[string]Tensor
	engine := EngineFunc(func(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
		got = inputs
		return map[string]Tensor{
			"detections": {Dims: []int{1, 1, 1, 7}, Data: []float32{0, 5, 0.8, 0.1, 0.1, 0.5, 0.5}},
		}, nil
	})
	cfg := config.Default().Detector
	a := NewAdapter(engine, cfg)

	f := pipeline.NewFrame(solid(64, 48, color.White), 1, time.Now(), nil)
	inf, err := a.Detect(context.Background(), f)
	is.NoErr(err)
	is.Equal(len(inf.Detections), 1)
	is.Equal(inf.Detections[0].Label, "5")
	is.Equal(inf.Geometry.InputWidth, cfg.InputWidth)

	in, ok := got[cfg.InputName]
	is.True(ok)
	is.Equal(in.Dims, []int{1, 3, cfg.InputHeight, cfg.InputWidth})
}

func TestAdapterEngineError(t *testing.T) {
	is := is.New(t)
	boom := errors.New("boom")
	engine := EngineFunc(func(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
		return nil, boom
	})
	a := NewAdapter(engine, config.Default().Detector)
	_, err := a.Detect(context.Background(), pipeline.NewFrame(solid(8, 8, color.Black), 1, time.Now(), nil))
	is.True(errors.Is(err, boom))
}

func TestAdapterZeroConfigDefaults(t *testing.T) {
	is := is.New(t)
	var got map[string]Tensor
	engine := EngineFunc(func(ctx context.Context, inputs map[string]Tensor) (map[string]Tensor, error) {
		got = inputs
		return map[string]Tensor{
			"detections": {Dims: []int{1, 1, 2, 7}, Data: []float32{
				0, 1, 0.2, 0.1, 0.1, 0.5, 0.5,
				0, 2, 0.4, 0.1, 0.1, 0.5, 0.5,
			}},
		}, nil
	})
	a := NewAdapter(engine, config.DetectorConfig{})

	inf, err := a.Detect(context.Background(), pipeline.NewFrame(solid(8, 8, color.Black), 1, time.Now(), nil))
	is.NoErr(err)
	is.Equal(len(inf.Detections), 1) // low score dropped at the 0.4 default
	is.Equal(inf.Detections[0].Label, "2")
	is.Equal(got["input"].Dims, []int{1, 3, 240, 320})
}
