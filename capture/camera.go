package capture

import (
	"context"
	"time"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers camera drivers
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
	"github.com/yixinin/camsight/stderr"
)

// Camera reads frames from the first video input device.
type Camera struct {
	cfg config.CaptureConfig
	seq sequence
}

func NewCamera(cfg config.CaptureConfig) *Camera {
	return &Camera{cfg: cfg}
}

func (c *Camera) Run(ctx context.Context, emit func(*pipeline.Frame)) error {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mtc *mediadevices.MediaTrackConstraints) {
			if c.cfg.Width > 0 {
				mtc.Width = prop.Int(c.cfg.Width)
			}
			if c.cfg.Height > 0 {
				mtc.Height = prop.Int(c.cfg.Height)
			}
			if c.cfg.Fps > 0 {
				mtc.FrameRate = prop.Float(c.cfg.Fps)
			}
		},
	})
	if err != nil {
		return stderr.Wrap(err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return stderr.New("no video track")
	}
	track := tracks[0].(*mediadevices.VideoTrack)
	defer track.Close()
	logrus.Infof("camera %s opened", track.ID())

	reader := track.NewReader(false)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		img, release, err := reader.Read()
		if err != nil {
			return stderr.Wrap(err)
		}
		emit(pipeline.NewFrame(img, c.seq.next(), time.Now(), release))
	}
}
