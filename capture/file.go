package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/pipeline"
	"github.com/yixinin/camsight/stderr"
)

// File decodes a video with ffmpeg and loops it at the configured rate.
type File struct {
	cfg config.CaptureConfig
	seq sequence
}

func NewFile(cfg config.CaptureConfig) *File {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	return &File{cfg: cfg}
}

func (f *File) Run(ctx context.Context, emit func(*pipeline.Frame)) error {
	cmd := ffmpeg.Input(f.cfg.Path, ffmpeg.KwArgs{"stream_loop": -1}).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "rgb24",
			"s":       fmt.Sprintf("%dx%d", f.cfg.Width, f.cfg.Height),
			"r":       f.cfg.Fps,
		}).
		Compile()
	out, err := cmd.StdoutPipe()
	if err != nil {
		return stderr.Wrap(err)
	}
	if err := cmd.Start(); err != nil {
		return stderr.Wrap(err)
	}
	logrus.Infof("decoding %s", f.cfg.Path)
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	tick := time.NewTicker(interval(f.cfg.Fps))
	defer tick.Stop()
	for {
		img, err := readRGB(out, f.cfg.Width, f.cfg.Height)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return stderr.Wrap(err)
		}
		emit(pipeline.NewFrame(img, f.seq.next(), time.Now(), nil))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

// readRGB reads one packed rgb24 frame.
func readRGB(r io.Reader, w, h int) (*image.NRGBA, error) {
	buf := make([]byte, w*h*3)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(buf); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}
